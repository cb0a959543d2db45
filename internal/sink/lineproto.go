package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// ToInfluxPoint converts a point to the client library's representation.
// Tags with empty values are dropped since line protocol cannot carry them.
func ToInfluxPoint(p *model.Point) *write.Point {
	ip := write.NewPointWithMeasurement(string(p.Measurement))
	for _, t := range p.Tags {
		if t.Value == "" {
			continue
		}
		ip.AddTag(t.Key, t.Value)
	}
	for _, f := range p.Fields {
		ip.AddField(f.Key, f.Value)
	}
	if !p.Time.IsZero() {
		ip.SetTime(p.Time)
	}
	return ip
}

// LineProtocol renders a point as one line of InfluxDB line protocol,
// newline included.
func LineProtocol(p *model.Point) string {
	return write.PointToLineProtocol(ToInfluxPoint(p), time.Nanosecond)
}

// LineWriter writes points as line protocol to a stream (stdout or a file).
type LineWriter struct {
	name   string
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// NewStdout writes line protocol to standard output.
func NewStdout() *LineWriter {
	return NewLineWriter("stdout", os.Stdout, nil)
}

// NewFile appends line protocol to path.
func NewFile(path string) (*LineWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewLineWriter("file", f, f), nil
}

// NewLineWriter wraps w. closer may be nil.
func NewLineWriter(name string, w io.Writer, closer io.Closer) *LineWriter {
	return &LineWriter{name: name, w: bufio.NewWriter(w), closer: closer}
}

func (l *LineWriter) Name() string { return l.name }

// Write renders and flushes the whole batch.
func (l *LineWriter) Write(_ context.Context, points []*model.Point) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range points {
		if _, err := l.w.WriteString(LineProtocol(p)); err != nil {
			return err
		}
	}
	return l.w.Flush()
}

// Close flushes and closes the underlying file, if any.
func (l *LineWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
