package firestore

import (
	"time"

	"booknest/internal/application/persistence"
)

// fromFirestore converts snapshot data into JSON-friendly values.
// Timestamps become ISO-8601 strings (the format documents carry locally).
func fromFirestore(m map[string]any) persistence.Document {
	out := make(persistence.Document, len(m))
	for k, v := range m {
		out[k] = fromFirestoreValue(v)
	}
	return out
}

func fromFirestoreValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return asTimestamp(t)
	case map[string]any:
		return map[string]any(fromFirestore(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromFirestoreValue(t[i])
		}
		return out
	default:
		return v
	}
}

func asTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return persistence.Timestamp(t)
}
