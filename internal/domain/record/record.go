// Package record defines the persisted deal record and tolerant field access.
//
// A record is written by out-of-process workers that may populate fields out
// of order, partially, or with the wrong shape. Every accessor in this package
// is total: malformed input degrades to an absent value, never an error.
package record

import "encoding/json"

// Status is the upstream processing status reported by the ingestion worker.
type Status string

// Upstream status values. An empty Status means the worker has not reported.
const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusUnknown Status = ""
)

// Memo is one stage payload produced by an analysis worker. Field sets differ
// per stage; callers read fields through the tolerant accessors below.
type Memo map[string]any

// Present reports whether the payload counts as produced: a non-nil object
// with at least one key.
func (m Memo) Present() bool {
	return len(m) > 0
}

// Text returns the first key whose value is a non-empty string.
func (m Memo) Text(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Number returns the value under key as a float64. JSON numbers decode as
// float64; int values from hand-built records are accepted too.
func (m Memo) Number(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// List returns the value under key as a slice. A missing key or a non-list
// value yields nil.
func (m Memo) List(key string) []any {
	v, ok := m[key].([]any)
	if !ok {
		return nil
	}
	return v
}

// Strings returns the list under key with every element rendered as a string,
// skipping elements that are not strings.
func (m Memo) Strings(key string) []string {
	var out []string
	for _, v := range m.List(key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// RawRecord is the persisted document for one deal. The core treats it as
// read-only; only workers and the upload path write it.
type RawRecord struct {
	ID                    string  `json:"id"`
	Status                Status  `json:"status,omitempty"`
	OriginalFilename      string  `json:"original_filename,omitempty"`
	CreatedAt             string  `json:"created_at,omitempty"`
	Timestamp             string  `json:"timestamp,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`

	// Sent is an explicit external override layered on top of the derived
	// pipeline stage; it is never inferred from payload presence.
	Sent bool `json:"sent,omitempty"`

	Memo1 Memo `json:"memo_1,omitempty"`
	Memo2 Memo `json:"memo_2,omitempty"`
	Memo3 Memo `json:"memo_3,omitempty"`
}

// Memo returns the payload for stage n (1..3), nil otherwise.
func (r RawRecord) Memo(n int) Memo {
	switch n {
	case 1:
		return r.Memo1
	case 2:
		return r.Memo2
	case 3:
		return r.Memo3
	}
	return nil
}

// Memos returns the stage payloads newest first. Absent stages are included
// as nil so callers can apply latest-wins precedence positionally.
func (r RawRecord) Memos() []Memo {
	return []Memo{r.Memo3, r.Memo2, r.Memo1}
}

// UnmarshalJSON decodes a record from loosely-shaped worker output. Fields
// with the wrong type are treated as absent rather than failing the decode.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Decode(raw)
	return nil
}

// Decode builds a RawRecord from an untyped document map. It never fails:
// every field falls back to its zero value when missing or mistyped.
func Decode(raw map[string]any) RawRecord {
	var r RawRecord
	r.ID = asString(raw["id"])
	r.Status = Status(asString(raw["status"]))
	r.OriginalFilename = asString(raw["original_filename"])
	r.CreatedAt = asString(raw["created_at"])
	r.Timestamp = asString(raw["timestamp"])
	if f, ok := asNumber(raw["processing_time_seconds"]); ok {
		r.ProcessingTimeSeconds = f
	}
	if b, ok := raw["sent"].(bool); ok {
		r.Sent = b
	}
	r.Memo1 = asMemo(raw["memo_1"])
	r.Memo2 = asMemo(raw["memo_2"])
	r.Memo3 = asMemo(raw["memo_3"])
	return r
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asMemo(v any) Memo {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return Memo(m)
}
