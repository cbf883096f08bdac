// backend/internal/adapters/out/docstore/book_repository.go
package docstore

import (
	"context"

	"booknest/internal/application/persistence"
	bookdom "booknest/internal/domain/book"
	"booknest/internal/domain/common"
)

type BookRepository struct {
	store Store
}

func NewBookRepository(s Store) *BookRepository {
	return &BookRepository{store: s}
}

var _ bookdom.Repository = (*BookRepository)(nil)

func (r *BookRepository) List(ctx context.Context) ([]bookdom.Book, error) {
	return load[bookdom.Book](ctx, r.store, ColBooks)
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (*bookdom.Book, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	bid := persistence.IDString(id)
	for i := range all {
		if all[i].ID.String() == bid {
			return &all[i], nil
		}
	}
	return nil, bookdom.ErrNotFound
}

func (r *BookRepository) Create(ctx context.Context, b bookdom.Book) (bookdom.Book, error) {
	if err := b.Validate(); err != nil {
		return b, err
	}
	doc, err := toDocument(b)
	if err != nil {
		return b, err
	}
	res, err := r.store.Save(ctx, ColBooks, doc, b.ID.String())
	if err != nil {
		return b, err
	}
	b.ID = common.ID(res.ID)
	return b, nil
}

func (r *BookRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	_, err := r.store.Update(ctx, ColBooks, id, fieldsOf(fields))
	return err
}

func (r *BookRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, ColBooks, id)
	return err
}
