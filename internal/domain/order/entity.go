// backend/internal/domain/order/entity.go
package order

import (
	"errors"
	"strings"
	"time"

	"booknest/internal/domain/common"
)

// ========================================
// Status
// ========================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Retained reports whether the retention sweep must keep the order regardless of age.
func (s Status) Retained() bool {
	return s == StatusPending || s == StatusConfirmed
}

// PaymentStatus is empty ("undefined") on orders created before payments existed.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaying   PaymentStatus = "paying"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRejected PaymentStatus = "rejected"
)

func (p PaymentStatus) Unpaid() bool {
	return p == "" || p == PaymentUnpaid
}

// ========================================
// Policy
// ========================================

const (
	OverdueAfter  = 24 * time.Hour
	PenaltyAmount = 10.0
	ShippingFee   = 50.0
)

// Order types chosen at checkout.
const (
	TypePile     = "pile"
	TypeShipping = "shipping"
)

// ========================================
// Entity
// ========================================

// Item is a cart line copied into the order.
type Item struct {
	BookID   common.ID `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
	Image    string    `json:"image,omitempty"`
}

type CustomerInfo struct {
	RecipientName   string `json:"recipientName"`
	PhoneNumber     string `json:"phoneNumber"`
	ShippingAddress string `json:"shippingAddress"`
}

func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.RecipientName) == "" ||
		strings.TrimSpace(c.PhoneNumber) == "" ||
		strings.TrimSpace(c.ShippingAddress) == "" {
		return ErrInvalidCustomer
	}
	return nil
}

type Order struct {
	ID              common.ID     `json:"id"`
	UserID          string        `json:"userId"`
	UserEmail       string        `json:"userEmail,omitempty"`
	UserName        string        `json:"userName,omitempty"`
	Items           []Item        `json:"items"`
	Subtotal        float64       `json:"subtotal,omitempty"`
	ShippingFee     float64       `json:"shippingFee,omitempty"`
	Total           float64       `json:"total"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus,omitempty"`
	OrderDate       common.Time   `json:"orderDate,omitzero"`
	LegacyDate      common.Time   `json:"date,omitzero"`
	PenaltyApplied  bool          `json:"penaltyApplied,omitempty"`
	PaymentProofURL string        `json:"paymentProofUrl,omitempty"`
	PaymentProofAt  common.Time   `json:"paymentProofUploadedAt,omitzero"`
	PaymentVerified common.Time   `json:"paymentVerifiedAt,omitzero"`
	RejectReason    string        `json:"paymentRejectionReason,omitempty"`
	TrackingNumber  string        `json:"trackingNumber,omitempty"`
	OrderType       string        `json:"orderType,omitempty"`
	CustomerInfo    *CustomerInfo `json:"customerInfo,omitempty"`
	ShippedAt       common.Time   `json:"shippedAt,omitzero"`
	UpdatedAt       common.Time   `json:"updatedAt,omitzero"`
}

// Errors (single source)
var (
	ErrNotFound        = errors.New("order: not found")
	ErrInvalidStatus   = errors.New("order: invalid status")
	ErrEmptyItems      = errors.New("order: items are empty")
	ErrNotCancellable  = errors.New("order: only pending orders can be cancelled")
	ErrNotPayable      = errors.New("order: payment proof is only accepted for unpaid pending orders")
	ErrNotShippable    = errors.New("order: only paid orders can be shipped")
	ErrInvalidCustomer = errors.New("order: recipient name, phone number and shipping address are required")
	ErrForbidden       = errors.New("order: not owned by caller")
	ErrInvalidType     = errors.New("order: order type must be pile or shipping")
)

// PlacedAt returns orderDate, falling back to the legacy "date" field.
func (o Order) PlacedAt() time.Time {
	if !o.OrderDate.IsZero() {
		return o.OrderDate.Time
	}
	return o.LegacyDate.Time
}

// Overdue is the admin alert predicate: still pending, still unpaid, older than a day.
func (o Order) Overdue(now time.Time) bool {
	if o.Status != StatusPending || !o.PaymentStatus.Unpaid() {
		return false
	}
	placed := o.PlacedAt()
	if placed.IsZero() {
		return false
	}
	return now.Sub(placed) > OverdueAfter
}

// PenaltyDue is the late-payment predicate used by the penalty sweep.
func (o Order) PenaltyDue(now time.Time) bool {
	if o.PenaltyApplied || o.Status == StatusCancelled || o.Status == StatusRejected {
		return false
	}
	open := o.Status == StatusPending || o.PaymentStatus == PaymentUnpaid || o.PaymentStatus == PaymentPaying
	if !open {
		return false
	}
	placed := o.PlacedAt()
	if placed.IsZero() {
		return false
	}
	return now.Sub(placed) > OverdueAfter
}

func (o Order) OwnedBy(userID string) bool {
	return strings.TrimSpace(userID) != "" && o.UserID == strings.TrimSpace(userID)
}

// ItemsTotal sums price*quantity.
func ItemsTotal(items []Item) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Patch represents partial updates. A nil field means "no change".
type Patch struct {
	Status          *Status
	PaymentStatus   *PaymentStatus
	Total           *float64
	PenaltyApplied  *bool
	PaymentProofURL *string
	PaymentProofAt  *time.Time
	OrderType       *string
	CustomerInfo    *CustomerInfo
	ShippedAt       *time.Time
	PaymentVerified *time.Time
	RejectReason    *string
	TrackingNumber  *string
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.Total == nil && p.PenaltyApplied == nil &&
		p.PaymentProofURL == nil && p.PaymentProofAt == nil && p.OrderType == nil &&
		p.CustomerInfo == nil && p.ShippedAt == nil && p.PaymentVerified == nil &&
		p.RejectReason == nil && p.TrackingNumber == nil
}
