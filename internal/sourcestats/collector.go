package sourcestats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Collector accumulates per-source counts and flushes them to Redis
// periodically. Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	pending map[string]*Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a collector flushing every flushInterval.
func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger.With(logging.Component("sourcestats")),
		pending:       make(map[string]*Update),
		cancel:        cancel,
	}
	c.wg.Add(1)
	go c.flushLoop(ctx)
	return c
}

// RecordBatch counts the records of a successfully processed batch by
// source. Each source seen in the batch is credited with one batch.
func (c *Collector) RecordBatch(batch model.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	for i := range batch {
		src := batch[i].Source
		u, ok := c.pending[src]
		if !ok {
			u = &Update{Source: src}
			c.pending[src] = u
		}
		u.Records++
		if !seen[src] {
			seen[src] = true
			u.Batches++
		}
	}
}

func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Update)
	c.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, u := range pending {
		if err := c.client.Flush(ctx, u); err != nil {
			c.logger.Error("failed to flush source stats",
				logging.Source(u.Source),
				logging.Records(int(u.Records)),
				logging.Error(err),
			)
			// merge back for the next attempt
			c.mu.Lock()
			if existing, ok := c.pending[u.Source]; ok {
				existing.Records += u.Records
				existing.Batches += u.Batches
			} else {
				c.pending[u.Source] = u
			}
			c.mu.Unlock()
		}
	}
}

// FlushNow forces an immediate flush.
func (c *Collector) FlushNow() {
	c.flush()
}

// Pending returns unflushed record counts by source.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.pending))
	for src, u := range c.pending {
		out[src] = u.Records
	}
	return out
}

// Stop flushes what remains and stops the loop.
func (c *Collector) Stop() error {
	c.cancel()
	c.wg.Wait()
	return nil
}
