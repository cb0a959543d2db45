package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// echoRouter emits one point per record tagged with the record's message id.
type echoRouter struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	skip     map[string]bool
}

func (r *echoRouter) Route(_ context.Context, rec *model.Record) []*model.Point {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		cur := r.maxSeen.Load()
		if n <= cur || r.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.skip[rec.MessageID.String()] {
		return nil
	}
	return []*model.Point{
		model.NewPoint(model.MeasurementAttackIntel, time.Time{}).AddTag("id", rec.MessageID.String()),
	}
}

type recordingSink struct {
	mu     sync.Mutex
	writes [][]*model.Point
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, points []*model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, points)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func makeBatch(n int) model.Batch {
	batch := make(model.Batch, n)
	for i := range batch {
		batch[i] = model.Record{Source: "test", MessageID: model.MessageID(strconv.Itoa(i))}
	}
	return batch
}

func ids(points []*model.Point) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		v, _ := p.Tag("id")
		out = append(out, v)
	}
	return out
}

func TestPipeline_RoutePreservesRecordOrder(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers="+strconv.Itoa(workers), func(t *testing.T) {
			r := &echoRouter{delay: time.Millisecond}
			p := New(r, nil, workers, logging.Discard())

			points, err := p.Route(context.Background(), makeBatch(12))
			require.NoError(t, err)
			assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, ids(points))
			assert.LessOrEqual(t, int(r.maxSeen.Load()), workers)
		})
	}
}

func TestPipeline_SequentialByDefault(t *testing.T) {
	r := &echoRouter{delay: time.Millisecond}
	p := New(r, nil, 0, logging.Discard())

	_, err := p.Route(context.Background(), makeBatch(5))
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestPipeline_ProcessWritesOnce(t *testing.T) {
	s := &recordingSink{}
	p := New(&echoRouter{}, s, 2, logging.Discard())

	res, err := p.Process(context.Background(), makeBatch(3))
	require.NoError(t, err)

	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 3, res.Records)
	assert.Len(t, res.Points, 3)
	require.Len(t, s.writes, 1)
	assert.Len(t, s.writes[0], 3)
}

func TestPipeline_ProcessKeepsContextBatchID(t *testing.T) {
	ctx := logging.WithBatchID(context.Background(), "batch-42")
	p := New(&echoRouter{}, &recordingSink{}, 1, logging.Discard())

	res, err := p.Process(ctx, makeBatch(1))
	require.NoError(t, err)
	assert.Equal(t, "batch-42", res.BatchID)
}

func TestPipeline_NoPointsIsSuccess(t *testing.T) {
	s := &recordingSink{err: errors.New("should not be called")}
	r := &echoRouter{skip: map[string]bool{"0": true, "1": true}}
	p := New(r, s, 1, logging.Discard())

	res, err := p.Process(context.Background(), makeBatch(2))
	require.NoError(t, err)
	assert.Empty(t, res.Points)

	res, err = p.Process(context.Background(), model.Batch{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Records)
}

func TestPipeline_SinkFailureFailsBatch(t *testing.T) {
	s := &recordingSink{err: errors.New("influx unavailable")}
	p := New(&echoRouter{}, s, 1, logging.Discard())

	res, err := p.Process(context.Background(), makeBatch(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSinkFailed)
	assert.Contains(t, err.Error(), "influx unavailable")
	assert.Len(t, res.Points, 2)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(&echoRouter{}, &recordingSink{}, 1, logging.Discard())
	_, err := p.Process(ctx, makeBatch(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_NotConfigured(t *testing.T) {
	var p *Pipeline
	_, err := p.Route(context.Background(), makeBatch(1))
	assert.Error(t, err)
}
