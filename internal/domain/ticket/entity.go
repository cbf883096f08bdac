// backend/internal/domain/ticket/entity.go
package ticket

import (
	"errors"
	"strings"
	"time"

	"booknest/internal/domain/common"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const (
	SenderCustomer = "customer"
	SenderAdmin    = "admin"
)

type Message struct {
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	Timestamp common.Time `json:"timestamp,omitzero"`
	Images    []string    `json:"images,omitempty"`
}

// Ticket is a customer-service conversation (global collection "tickets").
type Ticket struct {
	ID                    common.ID   `json:"id"`
	UserID                string      `json:"userId,omitempty"`
	Email                 string      `json:"email"`
	FBName                string      `json:"fbName"`
	FBLink                string      `json:"fbLink,omitempty"`
	Subject               string      `json:"subject"`
	Details               string      `json:"details"`
	OrderID               string      `json:"orderId,omitempty"`
	Images                []string    `json:"images,omitempty"`
	Status                Status      `json:"status"`
	Messages              []Message   `json:"messages"`
	LastAdminResponseAt   common.Time `json:"lastAdminResponseAt,omitzero"`
	LastCustomerMessageAt common.Time `json:"lastCustomerMessageAt,omitzero"`
	CustomerReadAt        common.Time `json:"customerReadAt,omitzero"`
	Timestamp             common.Time `json:"timestamp,omitzero"`
}

// Errors (single source)
var (
	ErrNotFound       = errors.New("ticket: not found")
	ErrInvalidSubject = errors.New("ticket: subject is required")
	ErrInvalidDetails = errors.New("ticket: details are required")
	ErrInvalidEmail   = errors.New("ticket: email is required")
	ErrEmptyMessage   = errors.New("ticket: message is empty")
	ErrClosed         = errors.New("ticket: ticket is closed")
	ErrForbidden      = errors.New("ticket: not owned by caller")
)

// Retained reports whether the retention sweep must keep the ticket regardless of age.
func (t Ticket) Retained() bool {
	return t.Status == StatusOpen
}

// UnreadByCustomer: an admin reply exists and is newer than the customer's last read mark.
func (t Ticket) UnreadByCustomer() bool {
	if t.LastAdminResponseAt.IsZero() {
		return false
	}
	if t.CustomerReadAt.IsZero() {
		return true
	}
	return t.LastAdminResponseAt.After(t.CustomerReadAt.Time)
}

// AwaitingAdmin: the customer wrote after the last admin reply.
func (t Ticket) AwaitingAdmin() bool {
	if t.Status != StatusOpen {
		return false
	}
	if t.LastAdminResponseAt.IsZero() {
		return true
	}
	return t.LastCustomerMessageAt.After(t.LastAdminResponseAt.Time)
}

func (t Ticket) BelongsTo(email string) bool {
	e := strings.TrimSpace(email)
	return e != "" && strings.EqualFold(strings.TrimSpace(t.Email), e)
}

func (t *Ticket) AddMessage(sender, content string, images []string, now time.Time) error {
	c := strings.TrimSpace(content)
	if c == "" && len(images) == 0 {
		return ErrEmptyMessage
	}
	if t.Status == StatusClosed {
		return ErrClosed
	}
	ts := common.At(now)
	t.Messages = append(t.Messages, Message{Type: sender, Content: c, Timestamp: ts, Images: images})
	if sender == SenderAdmin {
		t.LastAdminResponseAt = ts
	} else {
		t.LastCustomerMessageAt = ts
	}
	return nil
}
