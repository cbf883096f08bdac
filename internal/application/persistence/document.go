// internal/application/persistence/document.go
package persistence

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Document is an untyped record. The "id" field holds its identifier.
type Document map[string]any

const FieldID = "id"

// ID returns the document id in its string form.
func (d Document) ID() string {
	if d == nil {
		return ""
	}
	return IDString(d[FieldID])
}

func (d Document) String(field string) string {
	if d == nil {
		return ""
	}
	switch v := d[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Clone is a shallow copy; nested values are shared.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// IDString normalizes string and numeric ids so that 17 and "17" compare equal.
func IDString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return strings.TrimSpace(t.String())
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return IDString(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		x, err := rand.Int(rand.Reader, max)
		if err != nil {
			sb.WriteByte(base36[time.Now().UnixNano()%36])
			continue
		}
		sb.WriteByte(base36[x.Int64()])
	}
	return sb.String()
}

// NewClientID builds a client-assigned id: unix millis followed by 9 base36 chars.
func NewClientID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + randomBase36(9)
}

// NewGuestID builds the persistent anonymous user id.
func NewGuestID(now time.Time) string {
	return "guest_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomBase36(9)
}

var guestIDPattern = regexp.MustCompile(`^guest_[0-9]{1,16}_[0-9a-z]{9}$`)

// IsGuestID reports whether id has the shape NewGuestID produces.
func IsGuestID(id string) bool {
	return guestIDPattern.MatchString(id)
}

// DecodeDocuments parses a serialized collection. Anything that is not a JSON
// array of objects yields an empty collection and ok=false.
func DecodeDocuments(raw string) ([]Document, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return []Document{}, true
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return []Document{}, false
	}
	out := make([]Document, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			// non-object entries are kept out of typed views
			continue
		}
		out = append(out, Document(m))
	}
	return out, true
}

func EncodeDocuments(docs []Document) (string, error) {
	if docs == nil {
		docs = []Document{}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Normalize converts json.Number values into int64/float64 so that remote
// stores persist numbers as numbers.
func Normalize(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return map[string]any(Normalize(Document(t)))
	case Document:
		return map[string]any(Normalize(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	default:
		return v
	}
}

// ParseTime accepts RFC3339 strings, time.Time and unix-millis numbers.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
			if tt, err := time.Parse(layout, s); err == nil {
				return tt, true
			}
		}
		return time.Time{}, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return time.UnixMilli(i), true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	default:
		return time.Time{}, false
	}
}

// Timestamp renders t the way stored documents carry dates.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
