// backend/internal/domain/pile/repository_port.go
package pile

import "context"

// Repository is the persistence port for the acting user's pile.
type Repository interface {
	// List returns the pile, or only userID's items when userID is non-empty.
	List(ctx context.Context, userID string) ([]Item, error)
	Create(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// DeleteByOrder removes every item of orderID and returns how many were removed.
	DeleteByOrder(ctx context.Context, orderID string) (int, error)
}
