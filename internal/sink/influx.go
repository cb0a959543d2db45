package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// InfluxConfig holds time-series store connection settings.
type InfluxConfig struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Influx writes points to InfluxDB with a blocking write per batch.
type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInflux creates the client. No connection is made until the first write.
func NewInflux(cfg InfluxConfig) *Influx {
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (i *Influx) Name() string { return "influx" }

// Write sends the batch in one request.
func (i *Influx) Write(ctx context.Context, points []*model.Point) error {
	if len(points) == 0 {
		return nil
	}
	converted := make([]*write.Point, len(points))
	for n, p := range points {
		converted[n] = ToInfluxPoint(p)
	}
	if err := i.writer.WritePoint(ctx, converted...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (i *Influx) Ping(ctx context.Context) error {
	ok, err := i.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// Close releases the client's resources.
func (i *Influx) Close() error {
	i.client.Close()
	return nil
}
