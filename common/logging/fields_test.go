package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestStringAttributes(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
		key      string
	}{
		{name: "service", attr: Service("intel"), key: FieldService, expected: "intel"},
		{name: "component", attr: Component("router"), key: FieldComponent, expected: "router"},
		{name: "batch id", attr: BatchID("b-1"), key: FieldBatchID, expected: "b-1"},
		{name: "path", attr: Path("/drop/a.json"), key: FieldPath, expected: "/drop/a.json"},
		{name: "source", attr: Source("RSS_Feed"), key: FieldSource, expected: "RSS_Feed"},
		{name: "measurement", attr: Measurement("attack_intel"), key: FieldMeasurement, expected: "attack_intel"},
		{name: "subject", attr: Subject("Nintendo"), key: FieldSubject, expected: "Nintendo"},
		{name: "ip", attr: IP("203.0.113.5"), key: FieldIP, expected: "203.0.113.5"},
		{name: "sink", attr: Sink("influx"), key: FieldSink, expected: "influx"},
		{name: "error", attr: Error(errors.New("boom")), key: FieldError, expected: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.expected {
				t.Errorf("expected value %q, got %q", tt.expected, tt.attr.Value.String())
			}
		})
	}
}

func TestCountAttributes(t *testing.T) {
	if attr := Points(7); attr.Key != FieldPoints || attr.Value.Int64() != 7 {
		t.Errorf("unexpected points attribute: %v", attr)
	}
	if attr := Records(2); attr.Key != FieldRecords || attr.Value.Int64() != 2 {
		t.Errorf("unexpected records attribute: %v", attr)
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	if attr.Key != FieldDuration {
		t.Errorf("expected key %q, got %q", FieldDuration, attr.Key)
	}
	if attr.Value.Int64() != 1500 {
		t.Errorf("expected 1500ms, got %d", attr.Value.Int64())
	}
}
