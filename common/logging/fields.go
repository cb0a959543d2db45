package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across components.
const (
	FieldService     = "service"
	FieldComponent   = "component"
	FieldBatchID     = "batch_id"
	FieldPath        = "path"
	FieldSource      = "source"
	FieldMeasurement = "measurement"
	FieldSubject     = "subject"
	FieldIP          = "ip"
	FieldSink        = "sink"
	FieldPoints      = "points"
	FieldRecords     = "records"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Component returns a slog attribute naming the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// BatchID returns a slog attribute for a batch ID.
func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// Path returns a slog attribute for a file path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Source returns a slog attribute for a collector source identifier.
func Source(source string) slog.Attr {
	return slog.String(FieldSource, source)
}

// Measurement returns a slog attribute for a metric family.
func Measurement(name string) slog.Attr {
	return slog.String(FieldMeasurement, name)
}

// Subject returns a slog attribute for a lookup subject (entity name).
func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Sink returns a slog attribute for a sink name.
func Sink(name string) slog.Attr {
	return slog.String(FieldSink, name)
}

// Points returns a slog attribute for a point count.
func Points(n int) slog.Attr {
	return slog.Int(FieldPoints, n)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
