// backend/internal/adapters/out/docstore/pile_repository.go
package docstore

import (
	"context"
	"strings"

	"booknest/internal/application/persistence"
	"booknest/internal/domain/common"
	piledom "booknest/internal/domain/pile"
)

type PileRepository struct {
	store Store
}

func NewPileRepository(s Store) *PileRepository {
	return &PileRepository{store: s}
}

var _ piledom.Repository = (*PileRepository)(nil)

func (r *PileRepository) List(ctx context.Context, userID string) ([]piledom.Item, error) {
	all, err := load[piledom.Item](ctx, r.store, ColPile)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return all, nil
	}
	out := make([]piledom.Item, 0, len(all))
	for _, it := range all {
		if it.UserID == uid {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *PileRepository) Create(ctx context.Context, it piledom.Item) (piledom.Item, error) {
	doc, err := toDocument(it)
	if err != nil {
		return it, err
	}
	res, err := r.store.Save(ctx, ColPile, doc, it.ID.String())
	if err != nil {
		return it, err
	}
	it.ID = common.ID(res.ID)
	return it, nil
}

func (r *PileRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	_, err := r.store.Update(ctx, ColPile, id, fieldsOf(fields))
	return err
}

func (r *PileRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, ColPile, id)
	return err
}

func (r *PileRepository) DeleteByOrder(ctx context.Context, orderID string) (int, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return 0, err
	}
	oid := persistence.IDString(orderID)
	n := 0
	for _, it := range all {
		if it.OrderID.String() != oid {
			continue
		}
		if err := r.Delete(ctx, it.ID.String()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
