package model

import (
	"encoding/json"
	"time"
)

// Measurement names a metric family.
type Measurement string

// Metric families written to the time-series store. Names are part of the
// dashboard contract and must not change.
const (
	MeasurementAttackIntel          Measurement = "attack_intel"
	MeasurementInfrastructureC2     Measurement = "infrastructure_c2"
	MeasurementCrimewareMarket      Measurement = "crimeware_market"
	MeasurementTargetDiscovery      Measurement = "target_discovery"
	MeasurementInfrastructureHealth Measurement = "infrastructure_health"
	MeasurementHostSecurity         Measurement = "host_security"
)

// Measurements lists every family in schema order.
var Measurements = []Measurement{
	MeasurementAttackIntel,
	MeasurementInfrastructureC2,
	MeasurementCrimewareMarket,
	MeasurementTargetDiscovery,
	MeasurementInfrastructureHealth,
	MeasurementHostSecurity,
}

// Tag is an indexed identity dimension.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Field is a payload value. Value holds a string, int64 or float64.
type Field struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Point is one time-series sample. Tags and fields keep insertion order.
// A zero Time leaves timestamp assignment to the store.
type Point struct {
	Measurement Measurement `json:"measurement"`
	Tags        []Tag       `json:"tags"`
	Fields      []Field     `json:"fields"`
	Time        time.Time   `json:"time"`
}

// MarshalJSON omits the time of points whose timestamp is left to the store.
func (p Point) MarshalJSON() ([]byte, error) {
	type alias Point
	out := struct {
		alias
		Time *time.Time `json:"time,omitempty"`
	}{alias: alias(p)}
	if !p.Time.IsZero() {
		t := p.Time
		out.Time = &t
	}
	return json.Marshal(out)
}

// NewPoint starts a point for the given family.
func NewPoint(m Measurement, ts time.Time) *Point {
	return &Point{Measurement: m, Time: ts}
}

// AddTag appends or replaces a tag.
func (p *Point) AddTag(key, value string) *Point {
	for i := range p.Tags {
		if p.Tags[i].Key == key {
			p.Tags[i].Value = value
			return p
		}
	}
	p.Tags = append(p.Tags, Tag{Key: key, Value: value})
	return p
}

// AddField appends or replaces a field. Integer kinds are widened to int64.
func (p *Point) AddField(key string, value any) *Point {
	switch v := value.(type) {
	case int:
		value = int64(v)
	case int32:
		value = int64(v)
	case float32:
		value = float64(v)
	}
	for i := range p.Fields {
		if p.Fields[i].Key == key {
			p.Fields[i].Value = value
			return p
		}
	}
	p.Fields = append(p.Fields, Field{Key: key, Value: value})
	return p
}

// Tag returns the value of a tag.
func (p Point) Tag(key string) (string, bool) {
	for _, t := range p.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Field returns the value of a field.
func (p Point) Field(key string) (any, bool) {
	for _, f := range p.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}
