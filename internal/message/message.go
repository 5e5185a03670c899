// Package message holds the adapter-neutral message representation: an
// ordered list of {type, data} segments, plus the interface every adapter's
// native message type satisfies.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Segment is one {type, data} element of a serialized message
type Segment struct {
	Type string         `json:"type" yaml:"type"`
	Data map[string]any `json:"data" yaml:"data"`
}

// MarshalJSON encodes a nil Data map as {}
func (s Segment) MarshalJSON() ([]byte, error) {
	type plain Segment
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return json.Marshal(plain(s))
}

// JSONMsg is the stored form of a message
type JSONMsg []Segment

// MarshalJSON encodes an empty message as [] rather than null
func (m JSONMsg) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Segment(m))
}

// Message is implemented by the native message type of every adapter
type Message interface {
	// Segments projects the native segments onto {type, data} pairs.
	Segments() []Segment
	// PlainText concatenates the text carried by text-like segments.
	PlainText() string
}

// Encode marshals a message for storage
func Encode(m JSONMsg) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode parses a stored message; a JSON null decodes to an empty message.
// Numbers are kept as json.Number so large ids survive.
func Decode(data []byte) (JSONMsg, error) {
	var m JSONMsg
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if m == nil {
		m = JSONMsg{}
	}
	return m, nil
}

// FromSegments copies native segments into a JSONMsg
func FromSegments(segs []Segment) JSONMsg {
	out := make(JSONMsg, 0, len(segs))
	for _, seg := range segs {
		out = append(out, Segment{Type: seg.Type, Data: CloneData(seg.Data)})
	}
	return out
}

// Clone returns a deep copy of the message
func (m JSONMsg) Clone() JSONMsg {
	return FromSegments(m)
}

// Types lists the segment types in order
func (m JSONMsg) Types() []string {
	types := make([]string, len(m))
	for i, seg := range m {
		types[i] = seg.Type
	}
	return types
}

// CloneData deep-copies nested maps and slices of a segment payload
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// String returns the string value stored under key, or ""
func String(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
