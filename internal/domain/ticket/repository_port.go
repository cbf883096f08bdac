// backend/internal/domain/ticket/repository_port.go
package ticket

import "context"

type Repository interface {
	// List returns every ticket, or only userID's tickets when userID is non-empty.
	List(ctx context.Context, userID string) ([]Ticket, error)
	// ListByEmail matches case-insensitively.
	ListByEmail(ctx context.Context, email string) ([]Ticket, error)
	GetByID(ctx context.Context, id string) (*Ticket, error)
	Create(ctx context.Context, t Ticket) (Ticket, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	// Replace writes the whole ticket back under its id.
	Replace(ctx context.Context, t Ticket) error
}
