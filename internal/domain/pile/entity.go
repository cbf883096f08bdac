// backend/internal/domain/pile/entity.go
package pile

import (
	"errors"

	"booknest/internal/domain/common"
)

// Item is one book line waiting in the buyer's pile (user-scoped collection "pile").
// Items are grouped by OrderID; the pile is shipped or removed one order at a time.
type Item struct {
	ID       common.ID   `json:"id"`
	UserID   string      `json:"userId"`
	OrderID  common.ID   `json:"orderId"`
	BookID   common.ID   `json:"bookId"`
	Title    string      `json:"title"`
	Author   string      `json:"author,omitempty"`
	Price    float64     `json:"price"`
	Quantity int         `json:"quantity"`
	Image    string      `json:"image,omitempty"`
	AddedAt  common.Time `json:"addedAt,omitzero"`
	Status   string      `json:"status,omitempty"`
}

const StatusPending = "pending"

var (
	ErrNotFound = errors.New("pile: not found")
	ErrEmpty    = errors.New("pile: no items for order")
)

// Retained reports whether the retention sweep must keep the item regardless of age.
func (it Item) Retained() bool {
	return it.Status == StatusPending
}

// GroupByOrder keeps the first-seen order of order ids.
func GroupByOrder(items []Item) ([]string, map[string][]Item) {
	var order []string
	groups := map[string][]Item{}
	for _, it := range items {
		k := it.OrderID.String()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}
	return order, groups
}
