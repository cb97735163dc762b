package parse

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// Date normalizes a date that may arrive as a string, a number of unix
// milliseconds, or a time value. It returns nil when v carries no usable
// date; malformed input is treated as absent rather than as an error.
func Date(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return &val
	case *time.Time:
		if val == nil || val.IsZero() {
			return nil
		}
		t := *val
		return &t
	case string:
		return dateFromString(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return dateFromString(string(val))
		}
		return dateFromMillis(f)
	case float64:
		return dateFromMillis(val)
	case int64:
		return dateFromMillis(float64(val))
	case int:
		return dateFromMillis(float64(val))
	default:
		return nil
	}
}

func dateFromString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func dateFromMillis(ms float64) *time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

// FlexTime is a time that decodes from any representation Date accepts.
// A JSON null or an unparseable value leaves it unset.
type FlexTime struct {
	Time  time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexTime) UnmarshalJSON(b []byte) error {
	f.Time, f.Valid = time.Time{}, false

	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	if t := Date(raw); t != nil {
		f.Time, f.Valid = *t, true
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexTime) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time)
}

// Ptr returns the time as a pointer, nil when unset.
func (f FlexTime) Ptr() *time.Time {
	if !f.Valid {
		return nil
	}
	t := f.Time
	return &t
}
