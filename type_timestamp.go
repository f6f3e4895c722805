package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time as sent by the platform.
//
// The platform is not consistent: entities are serialized as ISO local date
// times without zone ("2025-01-10T14:03:11.123"), chart points as epoch
// milliseconds. Timestamp reads all of them, zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

// layouts accepted for string timestamps, in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// NewTimestamp returns t as a Timestamp.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{t} }

// ParseTimestamp parses a string timestamp using any supported layout.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = ts
		return nil
	}
	// epoch milliseconds
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		ms = int64(f)
	}
	*t = Timestamp{time.UnixMilli(ms).UTC()}
	return nil
}

// MarshalJSON implements json.Marshaler, timestamps are written in RFC3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
