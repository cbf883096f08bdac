// backend/internal/domain/book/repository_port.go
package book

import "context"

type Repository interface {
	List(ctx context.Context) ([]Book, error)
	GetByID(ctx context.Context, id string) (*Book, error)
	Create(ctx context.Context, b Book) (Book, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}
