// Package dlq records batches that could not be processed. The source file
// itself stays in the drop directory; the dead-letter entry is the audit
// trail and replay pointer.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/common/messaging"
	"github.com/telhawk-systems/telhawk-intel/internal/metrics"
)

// Reasons a batch is rejected.
const (
	ReasonMalformed  = "malformed_batch"
	ReasonSinkFailed = "sink_failed"
	ReasonReadFailed = "read_failed"
)

// RejectedBatch captures batch failure details for replay.
type RejectedBatch struct {
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id"`
	Path      string    `json:"path"`
	Records   int       `json:"records"`
	Points    int       `json:"points"`
	Error     string    `json:"error"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
}

// Writer records a rejected batch.
type Writer interface {
	Write(ctx context.Context, rejected RejectedBatch) error
}

// Queue writes rejected batches to disk for later analysis/replay. Repeated
// failures of the same path update one entry and bump Attempts.
type Queue struct {
	basePath string
	mu       sync.Mutex
	written  uint64
	logger   *slog.Logger
}

// NewQueue creates a DLQ that writes to the specified directory.
func NewQueue(basePath string, logger *slog.Logger) (*Queue, error) {
	if basePath == "" {
		basePath = "/var/lib/telhawk-intel/dlq"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{basePath: basePath, logger: logger.With(logging.Component("dlq"))}, nil
}

// Write records a rejected batch.
func (q *Queue) Write(ctx context.Context, rejected RejectedBatch) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if rejected.Timestamp.IsZero() {
		rejected.Timestamp = time.Now().UTC()
	}
	filePath := filepath.Join(q.basePath, entryName(rejected.Path))

	rejected.Attempts = 1
	if prev, err := readEntry(filePath); err == nil {
		rejected.Attempts = prev.Attempts + 1
	}

	data, err := json.MarshalIndent(rejected, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write dlq entry: %w", err)
	}

	q.written++
	metrics.DLQWrites.Inc()
	q.logger.WarnContext(ctx, "batch dead-lettered",
		logging.Path(rejected.Path),
		slog.String("reason", rejected.Reason),
		slog.Int("attempts", rejected.Attempts),
	)
	return nil
}

// Stats returns DLQ counters.
func (q *Queue) Stats() map[string]any {
	if q == nil {
		return map[string]any{"enabled": false}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return map[string]any{
			"enabled":       true,
			"written":       q.written,
			"pending_files": 0,
			"error":         err.Error(),
		}
	}
	return map[string]any{
		"enabled":       true,
		"written":       q.written,
		"pending_files": len(files),
		"base_path":     q.basePath,
	}
}

// List returns recorded rejections, oldest first.
func (q *Queue) List(_ context.Context, limit int) ([]RejectedBatch, error) {
	if q == nil {
		return nil, fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	var entries []RejectedBatch
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		entry, err := readEntry(filepath.Join(q.basePath, file.Name()))
		if err != nil {
			q.logger.Warn("skipping unreadable dlq entry", slog.String("file", file.Name()), logging.Error(err))
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Resolve removes the entry for path, typically after a successful retry.
func (q *Queue) Resolve(_ context.Context, path string) error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	err := os.Remove(filepath.Join(q.basePath, entryName(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete dlq entry: %w", err)
	}
	return nil
}

// Purge removes all entries.
func (q *Queue) Purge(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("dlq not enabled")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	files, err := os.ReadDir(q.basePath)
	if err != nil {
		return fmt.Errorf("read dlq directory: %w", err)
	}

	deleted := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(q.basePath, file.Name())); err != nil {
			q.logger.WarnContext(ctx, "failed to delete dlq entry", slog.String("file", file.Name()), logging.Error(err))
			continue
		}
		deleted++
	}
	q.logger.InfoContext(ctx, "dlq purged", slog.Int("deleted", deleted))
	return nil
}

// entryName maps a batch path to its entry file name.
func entryName(path string) string {
	base := filepath.Base(path)
	return "rejected_" + strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

func readEntry(path string) (RejectedBatch, error) {
	var entry RejectedBatch
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

// Publisher sends rejected batches to a message bus subject.
type Publisher struct {
	pub     messaging.Publisher
	subject string
}

// NewPublisher creates a bus-backed DLQ. An empty subject uses
// messaging.SubjectRejectedBatches.
func NewPublisher(pub messaging.Publisher, subject string) *Publisher {
	if subject == "" {
		subject = messaging.SubjectRejectedBatches
	}
	return &Publisher{pub: pub, subject: subject}
}

// Write publishes the rejection.
func (p *Publisher) Write(ctx context.Context, rejected RejectedBatch) error {
	if rejected.Timestamp.IsZero() {
		rejected.Timestamp = time.Now().UTC()
	}
	if rejected.Attempts == 0 {
		rejected.Attempts = 1
	}
	data, err := json.Marshal(rejected)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}
	msg := messaging.NewMessage(p.subject, data,
		messaging.WithHeader(messaging.HeaderBatchID, rejected.BatchID),
		messaging.WithHeader(messaging.HeaderSourcePath, rejected.Path),
	)
	if err := p.pub.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}
	metrics.DLQWrites.Inc()
	return nil
}
