package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultSource is used when a record carries no source identifier.
const DefaultSource = "unknown"

// Batch is the unit delivered by collectors: an ordered list of records.
type Batch []Record

// Record is a raw intelligence record as emitted by a collector.
type Record struct {
	Timestamp Timestamp `json:"timestamp"`
	Source    string    `json:"source"`
	MessageID MessageID `json:"message_id"`
	RawText   string    `json:"raw_text"`
	Analysis  Analysis  `json:"analysis"`
}

// UnmarshalJSON decodes a record, defaulting the source when it is absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	aux := alias{Source: DefaultSource}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux)
	return nil
}

// Timestamp is an optional ISO-8601 instant. Null, missing and unparsable
// values all decode to the zero Timestamp.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the layouts collectors are known to emit.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t.UTC()}, true
		}
	}
	return Timestamp{}, false
}

// Valid reports whether the timestamp was present and parsed.
func (t Timestamp) Valid() bool {
	return !t.IsZero()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	parsed, _ := ParseTimestamp(s)
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// MessageID is the collector's message identifier. Collectors emit it as
// either a number or a string (URLs for feed items).
type MessageID string

func (m *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects and arrays are not identifiers; keep their raw text.
		*m = MessageID(data)
		return nil
	}
	*m = MessageID(n.String())
	return nil
}

func (m MessageID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(m), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(m) {
		return []byte(m), nil
	}
	return json.Marshal(string(m))
}

func (m MessageID) String() string {
	return string(m)
}

// scalarString renders a JSON scalar as text. ok is false for objects,
// arrays and null.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}

// decodeStrings decodes a JSON array leniently. Scalars are stringified and
// anything else is dropped.
func decodeStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := scalarString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// decodeObject decodes a JSON object into a key→raw map. ok is false for
// any other JSON type.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	return scalarString(raw)
}
