package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp accepts the encodings clients send for uploadedAt and normalizes
// them to a UTC time.Time. Accepted forms: RFC 3339 strings, "2006-01-02 15:04:05",
// "2006-01-02", Unix milliseconds as a JSON number, and structured objects
// {"seconds": N, "nanoseconds": M} (underscore-prefixed keys too).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type structuredTimestamp struct {
	Seconds          *int64 `json:"seconds"`
	Nanoseconds      int64  `json:"nanoseconds"`
	LegacySeconds    *int64 `json:"_seconds"`
	LegacyNanosecond int64  `json:"_nanoseconds"`
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses the string forms accepted for uploadedAt.
func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	switch data[0] {
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := ParseTimestamp(raw)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case '{':
		var st structuredTimestamp
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode structured timestamp: %w", err)
		}
		switch {
		case st.Seconds != nil:
			*t = NewTimestamp(time.Unix(*st.Seconds, st.Nanoseconds))
		case st.LegacySeconds != nil:
			*t = NewTimestamp(time.Unix(*st.LegacySeconds, st.LegacyNanosecond))
		default:
			return fmt.Errorf("structured timestamp needs a seconds field")
		}
		return nil
	default:
		var millis int64
		if err := json.Unmarshal(data, &millis); err != nil {
			return fmt.Errorf("unrecognized timestamp %s", string(data))
		}
		*t = NewTimestamp(time.UnixMilli(millis))
		return nil
	}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
