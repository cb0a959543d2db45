// Package pipeline turns a batch of records into metric points and hands
// them to a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
	"github.com/telhawk-systems/telhawk-intel/internal/sink"
)

// ErrSinkFailed wraps a failed point write. The batch must not be archived.
var ErrSinkFailed = errors.New("sink write failed")

// Router converts one record into points.
type Router interface {
	Route(ctx context.Context, rec *model.Record) []*model.Point
}

// Result describes one processed batch.
type Result struct {
	BatchID  string
	Records  int
	Points   []*model.Point
	Duration time.Duration
}

// Pipeline orchestrates routing and sink delivery for a batch.
type Pipeline struct {
	router  Router
	sink    sink.Sink
	workers int
	logger  *slog.Logger
}

// New creates a pipeline. workers below 1 routes records sequentially.
// sink may be nil for dry runs; Process then only routes.
func New(router Router, s sink.Sink, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		router:  router,
		sink:    s,
		workers: workers,
		logger:  logger.With(logging.Component("pipeline")),
	}
}

// Route routes every record in batch. Points are returned in record order
// regardless of the worker count.
func (p *Pipeline) Route(ctx context.Context, batch model.Batch) ([]*model.Point, error) {
	if p == nil || p.router == nil {
		return nil, fmt.Errorf("pipeline not configured")
	}

	perRecord := make([][]*model.Point, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perRecord[i] = p.router.Route(gctx, &batch[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var points []*model.Point
	for _, pts := range perRecord {
		points = append(points, pts...)
	}
	return points, nil
}

// Process routes batch and writes the resulting points in one sink call.
// A batch yielding no points is a success and nothing is written.
func (p *Pipeline) Process(ctx context.Context, batch model.Batch) (Result, error) {
	start := time.Now()
	res := Result{BatchID: logging.BatchIDFrom(ctx), Records: len(batch)}
	if res.BatchID == "" {
		res.BatchID = uuid.NewString()
		ctx = logging.WithBatchID(ctx, res.BatchID)
	}
	log := logging.FromContext(ctx, p.logger)

	points, err := p.Route(ctx, batch)
	if err != nil {
		return res, fmt.Errorf("route batch: %w", err)
	}
	res.Points = points

	if len(points) == 0 {
		res.Duration = time.Since(start)
		log.InfoContext(ctx, "batch produced no points", logging.Records(len(batch)))
		return res, nil
	}

	if p.sink != nil {
		if err := p.sink.Write(ctx, points); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: %w", ErrSinkFailed, err)
		}
	}

	res.Duration = time.Since(start)
	log.InfoContext(ctx, "batch processed",
		logging.Records(len(batch)),
		logging.Points(len(points)),
		logging.Duration(res.Duration),
	)
	return res, nil
}
