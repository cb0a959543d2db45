// Package sink delivers metric points to time-series storage and other
// consumers. A Write is all-or-nothing from the caller's point of view.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/metrics"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// ErrNoSinks is returned when a Multi has nothing to write to.
var ErrNoSinks = errors.New("no sinks configured")

// Sink writes one batch of points.
type Sink interface {
	Name() string
	Write(ctx context.Context, points []*model.Point) error
	Close() error
}

// Multi fans points out to several sinks. Every sink receives the batch
// even if an earlier one failed; the batch fails if any sink failed.
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMulti creates a fan-out over sinks.
func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger.With(logging.Component("sink"))}
}

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Name() string { return "multi" }

// Write delivers points to every wrapped sink, collecting errors.
func (m *Multi) Write(ctx context.Context, points []*model.Point) error {
	if len(m.sinks) == 0 {
		return ErrNoSinks
	}
	var errs []error
	for _, s := range m.sinks {
		start := time.Now()
		err := s.Write(ctx, points)
		metrics.SinkWriteDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			continue
		}
		logging.FromContext(ctx, m.logger).DebugContext(ctx, "points written",
			logging.Sink(s.Name()), logging.Points(len(points)))
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
