// backend/internal/domain/cart/repository_port.go
package cart

import "context"

// Repository is a persistence port for the acting user's cart
// (user-scoped collection "cart", single document id "current").
type Repository interface {
	// Get returns the canonical cart. A missing cart is returned as an empty one.
	Get(ctx context.Context) (*Cart, error)

	// Save writes the cart under id "current" (never as a new record).
	Save(ctx context.Context, c *Cart) error

	// Clear empties the items (idempotent).
	Clear(ctx context.Context) error
}
