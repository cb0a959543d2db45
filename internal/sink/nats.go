package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/common/messaging"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Publisher fans points out over the message bus as one JSON message per
// batch, so downstream consumers can react to fresh intel.
type Publisher struct {
	pub     messaging.Publisher
	subject string
	split   bool
}

// NewPublisher publishes to subject (messaging.SubjectMetricPoints when
// empty). The publisher is not closed by Close; its owner closes it.
func NewPublisher(pub messaging.Publisher, subject string) *Publisher {
	if subject == "" {
		subject = messaging.SubjectMetricPoints
	}
	return &Publisher{pub: pub, subject: subject}
}

// SplitByMeasurement publishes each family to its own subject
// (<subject>.<measurement>) so consumers can subscribe per family.
func (p *Publisher) SplitByMeasurement(split bool) *Publisher {
	p.split = split
	return p
}

func (p *Publisher) Name() string { return "nats" }

// Write publishes the batch, either as one message or one message per
// measurement, then waits for the server to confirm.
func (p *Publisher) Write(ctx context.Context, points []*model.Point) error {
	if len(points) == 0 {
		return nil
	}

	opts := []messaging.PublishOption{messaging.WithHeader(messaging.HeaderContentType, "application/json")}
	if id := logging.BatchIDFrom(ctx); id != "" {
		opts = append(opts, messaging.WithHeader(messaging.HeaderBatchID, id))
	}

	if !p.split {
		if err := p.publish(ctx, p.subject, points, opts); err != nil {
			return err
		}
	} else {
		for _, group := range groupByMeasurement(points) {
			subject := messaging.MeasurementSubject(p.subject, string(group[0].Measurement))
			if err := p.publish(ctx, subject, group, opts); err != nil {
				return err
			}
		}
	}

	// A batch counts as written once the server has acknowledged the flush.
	if f, ok := p.pub.(flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, subject string, points []*model.Point, opts []messaging.PublishOption) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("marshal points: %w", err)
	}
	return p.pub.PublishMsg(ctx, messaging.NewMessage(subject, data, opts...))
}

// groupByMeasurement keeps families in order of first appearance.
func groupByMeasurement(points []*model.Point) [][]*model.Point {
	index := make(map[model.Measurement]int)
	var groups [][]*model.Point
	for _, pt := range points {
		i, ok := index[pt.Measurement]
		if !ok {
			i = len(groups)
			index[pt.Measurement] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], pt)
	}
	return groups
}

type flusher interface {
	Flush(ctx context.Context) error
}

func (p *Publisher) Close() error { return nil }
