// backend/internal/domain/common/time.go
package common

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form dates are stored in.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Time decodes leniently: a missing, empty or unparseable value becomes the
// zero time instead of failing the whole document.
type Time struct {
	time.Time
}

func At(t time.Time) Time { return Time{Time: t.UTC()} }

func (t Time) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(TimestampLayout))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	t.Time = time.Time{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] != '"' {
		// unix millis
		var n json.Number
		if err := json.Unmarshal(b, &n); err == nil {
			if ms, err := n.Int64(); err == nil {
				t.Time = time.UnixMilli(ms).UTC()
			}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.Time, _ = ParseTime(s)
	return nil
}

// ParseTime accepts the layouts found in stored documents.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, TimestampLayout, "2006-01-02"} {
		if tt, err := time.Parse(layout, s); err == nil {
			return tt.UTC(), true
		}
	}
	return time.Time{}, false
}
