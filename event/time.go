package event

import (
	"bytes"
	"fmt"
	"time"
)

// TimeLayout is the wire format of every timestamp in an event.
const TimeLayout = "2006/01/02 15:04:05-0700"

// Time is a timestamp that encodes to JSON using TimeLayout.
type Time struct {
	time.Time
}

func NewTime(t time.Time) *Time {
	return &Time{Time: t}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return []byte(`"` + t.Format(TimeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("Failed to parse event time %s: not a string", string(data))
	}

	parsed, err := time.Parse(TimeLayout, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("Failed to parse event time: %w", err)
	}

	t.Time = parsed
	return nil
}
