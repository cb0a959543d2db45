package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/dlq"
	"github.com/telhawk-systems/telhawk-intel/internal/metrics"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
	"github.com/telhawk-systems/telhawk-intel/internal/pipeline"
	"github.com/telhawk-systems/telhawk-intel/internal/source"
)

// Batch statuses reported to metrics.
const (
	StatusSuccess    = "success"
	StatusEmpty      = "empty"
	StatusMalformed  = "malformed"
	StatusReadFailed = "read_failed"
	StatusSinkFailed = "sink_failed"
)

// Source supplies batch files and accepts the processed signal.
type Source interface {
	Pending() ([]string, error)
	Read(path string) (model.Batch, error)
	MarkProcessed(path string) error
}

// BatchRecorder receives every successfully processed batch.
type BatchRecorder interface {
	RecordBatch(batch model.Batch)
}

// Processor drives batch files through the pipeline and captures basic
// telemetry. Failed files stay in the source for a later retry.
type Processor struct {
	source    Source
	pipeline  *pipeline.Pipeline
	dlq       dlq.Writer
	recorder  BatchRecorder
	logger    *slog.Logger
	startedAt time.Time

	processed atomic.Uint64
	failed    atomic.Uint64
	points    atomic.Uint64
	lastBatch atomic.Int64
}

// NewProcessor creates a new Processor instance. dlqWriter may be nil.
func NewProcessor(src Source, p *pipeline.Pipeline, dlqWriter dlq.Writer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:    src,
		pipeline:  p,
		dlq:       dlqWriter,
		logger:    logger.With(logging.Component("processor")),
		startedAt: time.Now().UTC(),
	}
}

// WithRecorder attaches a recorder for successful batches.
func (p *Processor) WithRecorder(r BatchRecorder) *Processor {
	p.recorder = r
	return p
}

// ProcessFile reads, routes and writes one batch file, archiving it only
// when every point was accepted by the sink.
func (p *Processor) ProcessFile(ctx context.Context, path string) (pipeline.Result, error) {
	start := time.Now()
	batchID := uuid.NewString()
	ctx = logging.WithBatchID(ctx, batchID)
	log := logging.FromContext(ctx, p.logger).With(logging.Path(path))

	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	batch, err := p.source.Read(path)
	if err != nil {
		status, reason := StatusReadFailed, dlq.ReasonReadFailed
		if errors.Is(err, source.ErrMalformedBatch) {
			status, reason = StatusMalformed, dlq.ReasonMalformed
		}
		p.fail(ctx, status, dlq.RejectedBatch{BatchID: batchID, Path: path, Error: err.Error(), Reason: reason})
		log.ErrorContext(ctx, "batch rejected", logging.Error(err))
		return pipeline.Result{BatchID: batchID}, err
	}

	res, err := p.pipeline.Process(ctx, batch)
	if err != nil && !errors.Is(err, pipeline.ErrSinkFailed) {
		log.WarnContext(ctx, "batch interrupted", logging.Error(err))
		return res, err
	}
	if err != nil {
		p.fail(ctx, StatusSinkFailed, dlq.RejectedBatch{
			BatchID: batchID,
			Path:    path,
			Records: res.Records,
			Points:  len(res.Points),
			Error:   err.Error(),
			Reason:  dlq.ReasonSinkFailed,
		})
		log.ErrorContext(ctx, "batch failed, leaving file in place", logging.Error(err))
		return res, err
	}

	if err := p.source.MarkProcessed(path); err != nil {
		// Points are already written; the file will be replayed on the next poll.
		p.failed.Add(1)
		log.ErrorContext(ctx, "failed to archive batch", logging.Error(err))
		return res, fmt.Errorf("mark processed: %w", err)
	}
	if r, ok := p.dlq.(interface {
		Resolve(context.Context, string) error
	}); ok {
		if err := r.Resolve(ctx, path); err != nil {
			log.WarnContext(ctx, "failed to clear dlq entry", logging.Error(err))
		}
	}

	if p.recorder != nil {
		p.recorder.RecordBatch(batch)
	}

	status := StatusSuccess
	if len(res.Points) == 0 {
		status = StatusEmpty
	}
	metrics.BatchesTotal.WithLabelValues(status).Inc()
	p.processed.Add(1)
	p.points.Add(uint64(len(res.Points)))
	p.lastBatch.Store(time.Now().UTC().Unix())
	return res, nil
}

func (p *Processor) fail(ctx context.Context, status string, rejected dlq.RejectedBatch) {
	p.failed.Add(1)
	metrics.BatchesTotal.WithLabelValues(status).Inc()
	if p.dlq == nil {
		return
	}
	if err := p.dlq.Write(ctx, rejected); err != nil {
		logging.FromContext(ctx, p.logger).ErrorContext(ctx, "failed to write dlq entry", logging.Error(err))
	}
}

// ProcessPending processes every pending file once and returns how many
// succeeded. Individual file failures are logged, not returned.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	paths, err := p.source.Pending()
	if err != nil {
		return 0, err
	}
	ok := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if _, err := p.ProcessFile(ctx, path); err == nil {
			ok++
		}
	}
	return ok, nil
}

// Run polls the source every interval and whenever wake fires, until ctx
// is cancelled. wake may be nil.
func (p *Processor) Run(ctx context.Context, interval time.Duration, wake <-chan struct{}) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "processor started", slog.Duration("poll_interval", interval))
	for {
		if _, err := p.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "failed to list pending batches", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "processor stopped")
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

// Stats returns a snapshot of processor metrics.
type Stats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Processed     uint64 `json:"processed"`
	Failed        uint64 `json:"failed"`
	Points        uint64 `json:"points"`
	LastBatchUnix int64  `json:"last_batch_unix,omitempty"`
}

// Health returns live status for health checks.
func (p *Processor) Health() Stats {
	return Stats{
		UptimeSeconds: int64(time.Since(p.startedAt).Seconds()),
		Processed:     p.processed.Load(),
		Failed:        p.failed.Load(),
		Points:        p.points.Load(),
		LastBatchUnix: p.lastBatch.Load(),
	}
}
