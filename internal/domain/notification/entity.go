// backend/internal/domain/notification/entity.go
package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"booknest/internal/domain/common"
)

type Type string

const (
	TypeOrder   Type = "order"
	TypePayment Type = "payment"
	TypeTicket  Type = "ticket"
	TypeOverdue Type = "overdue"

	// user-facing kinds
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Record is one notification. Admin records have no UserID.
type Record struct {
	ID        common.ID   `json:"id"`
	UserID    string      `json:"userId,omitempty"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      Type        `json:"type"`
	RelatedID common.ID   `json:"relatedId,omitempty"`
	Link      string      `json:"link,omitempty"`
	Timestamp common.Time `json:"timestamp,omitzero"`
	Read      bool        `json:"read"`
	// EventKey narrows deduplication to one occurrence, e.g. a single proof upload.
	EventKey string `json:"eventKey,omitempty"`
}

var ErrNotFound = errors.New("notification: not found")

// UnmarshalJSON also accepts the legacy "date" field as the timestamp.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		Date common.Time `json:"date"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.Timestamp.IsZero() && !aux.Date.IsZero() {
		r.Timestamp = aux.Date
	}
	return nil
}

// Is reports whether r was emitted for relatedID with type t.
func (r Record) Is(t Type, relatedID string) bool {
	return r.Type == t && r.RelatedID.String() == relatedID
}

// SameEvent reports whether r and o were emitted for the same occurrence.
// Records carrying an EventKey match on it; others match on type and relatedId.
func (r Record) SameEvent(o Record) bool {
	if r.Type != o.Type {
		return false
	}
	if r.EventKey != "" || o.EventKey != "" {
		return r.EventKey == o.EventKey
	}
	return r.RelatedID == o.RelatedID
}

func (r Record) At() time.Time { return r.Timestamp.Time }

// DecodeList parses a serialized list; malformed input yields an empty list.
func DecodeList(raw string) []Record {
	b := bytes.TrimSpace([]byte(raw))
	if len(b) == 0 {
		return []Record{}
	}
	var out []Record
	if err := json.Unmarshal(b, &out); err != nil {
		return []Record{}
	}
	if out == nil {
		out = []Record{}
	}
	return out
}

func EncodeList(list []Record) (string, error) {
	if list == nil {
		list = []Record{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
