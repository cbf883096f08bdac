// backend/internal/domain/cart/entity.go
package cart

import (
	"errors"
	"strings"
	"time"

	"booknest/internal/domain/common"
)

var (
	ErrInvalidCart   = errors.New("cart: invalid")
	ErrStockExceeded = errors.New("cart: maximum stock reached")
	ErrEmpty         = errors.New("cart: cart is empty")
)

// CurrentID is the id of the one canonical cart document per user.
// Any other record in the cart collection is a stale snapshot.
const CurrentID = "current"

// CartItem is a copy of the book at the time it was added plus a quantity.
// id is the book id.
type CartItem struct {
	BookID   common.ID `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Price    float64   `json:"price"`
	Stock    int       `json:"stock"`
	Image    string    `json:"image,omitempty"`
	Quantity int       `json:"quantity"`
}

// Cart is the canonical cart document.
//   - id is always "current"
//   - Items keeps insertion order (one line per book)
type Cart struct {
	ID        string      `json:"id"`
	Items     []CartItem  `json:"items"`
	UpdatedAt common.Time `json:"updatedAt,omitzero"`
}

// NewCart creates the canonical cart doc. items can be nil (treated as empty).
func NewCart(items []CartItem, now time.Time) *Cart {
	c := &Cart{
		ID:    CurrentID,
		Items: cloneItems(items),
	}
	c.touch(now)
	return c
}

// Add puts one more copy of the book in the cart, bounded by stock.
func (c *Cart) Add(item CartItem, now time.Time) error {
	if c == nil || item.BookID.IsZero() {
		return ErrInvalidCart
	}
	if c.Items == nil {
		c.Items = []CartItem{}
	}

	idx := findItemIndex(c.Items, item.BookID)
	if idx >= 0 {
		if c.Items[idx].Quantity >= c.Items[idx].Stock {
			return ErrStockExceeded
		}
		c.Items[idx].Quantity++
	} else {
		if item.Stock <= 0 {
			return ErrStockExceeded
		}
		item.Quantity = 1
		c.Items = append(c.Items, item)
	}

	c.touch(now)
	return nil
}

// SetQty sets the quantity of a book. qty <= 0 removes the line.
func (c *Cart) SetQty(bookID string, qty int, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	idx := findItemIndex(c.Items, common.ID(strings.TrimSpace(bookID)))
	if idx < 0 {
		return nil
	}

	if qty <= 0 {
		c.Items = removeIndex(c.Items, idx)
		c.touch(now)
		return nil
	}
	if qty > c.Items[idx].Stock {
		return ErrStockExceeded
	}
	c.Items[idx].Quantity = qty
	c.touch(now)
	return nil
}

func (c *Cart) Remove(bookID string, now time.Time) error {
	return c.SetQty(bookID, 0, now)
}

// ConsumeAll clears items for order creation and returns a snapshot of items.
func (c *Cart) ConsumeAll(now time.Time) ([]CartItem, error) {
	if c == nil {
		return nil, ErrInvalidCart
	}
	if len(c.Items) == 0 {
		return nil, ErrEmpty
	}
	snap := cloneItems(c.Items)
	c.Items = []CartItem{}
	c.touch(now)
	return snap, nil
}

func (c *Cart) Total() float64 {
	if c == nil {
		return 0
	}
	total := 0.0
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

func (c *Cart) Count() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) touch(now time.Time) {
	c.ID = CurrentID
	c.UpdatedAt = common.At(now)
}

// ----------------------------
// Helpers
// ----------------------------

func findItemIndex(items []CartItem, bookID common.ID) int {
	for i := range items {
		if items[i].BookID == bookID {
			return i
		}
	}
	return -1
}

func removeIndex(items []CartItem, idx int) []CartItem {
	if idx < 0 || idx >= len(items) {
		return items
	}
	// preserve order
	return append(items[:idx], items[idx+1:]...)
}

func cloneItems(src []CartItem) []CartItem {
	if len(src) == 0 {
		return []CartItem{}
	}
	cp := make([]CartItem, 0, len(src))
	for _, it := range src {
		if it.BookID.IsZero() || it.Quantity <= 0 {
			continue
		}
		cp = append(cp, it)
	}
	return cp
}
