// backend/internal/adapters/out/docstore/cart_repository.go
package docstore

import (
	"context"
	"errors"
	"time"

	cartdom "booknest/internal/domain/cart"
)

// CartRepository stores the acting user's cart as the single document "current".
type CartRepository struct {
	store Store
	now   func() time.Time
}

func NewCartRepository(s Store, now func() time.Time) *CartRepository {
	if now == nil {
		now = time.Now
	}
	return &CartRepository{store: s, now: now}
}

var _ cartdom.Repository = (*CartRepository)(nil)

// Get returns the "current" doc. Stale untagged snapshots are ignored here;
// the quota monitor's cart repair folds them away.
func (r *CartRepository) Get(ctx context.Context) (*cartdom.Cart, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("cart_repository: store is nil")
	}
	res, err := r.store.Load(ctx, ColCart)
	if err != nil {
		return nil, err
	}
	for _, d := range res.Documents {
		if d.ID() != cartdom.CurrentID {
			continue
		}
		c, err := fromDocument[cartdom.Cart](d)
		if err != nil {
			break
		}
		c.ID = cartdom.CurrentID
		if c.Items == nil {
			c.Items = []cartdom.CartItem{}
		}
		return &c, nil
	}
	return cartdom.NewCart(nil, r.now()), nil
}

func (r *CartRepository) Save(ctx context.Context, c *cartdom.Cart) error {
	if r == nil || r.store == nil {
		return errors.New("cart_repository: store is nil")
	}
	if c == nil {
		return errors.New("cart_repository: cart is nil")
	}
	c.ID = cartdom.CurrentID
	if c.Items == nil {
		c.Items = []cartdom.CartItem{}
	}
	doc, err := toDocument(c)
	if err != nil {
		return err
	}
	_, err = r.store.Save(ctx, ColCart, doc, cartdom.CurrentID)
	return err
}

// Clear は items を空にして保存します（冪等）。
func (r *CartRepository) Clear(ctx context.Context) error {
	return r.Save(ctx, cartdom.NewCart(nil, r.now()))
}
