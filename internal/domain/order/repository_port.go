// backend/internal/domain/order/repository_port.go
package order

import "context"

// Repository is the persistence port for orders (global collection "orders").
type Repository interface {
	// List returns every order, or only userID's orders when userID is non-empty.
	List(ctx context.Context, userID string) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o Order) (Order, error)
	Update(ctx context.Context, id string, patch Patch) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
}
