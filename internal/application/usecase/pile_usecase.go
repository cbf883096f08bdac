// backend/internal/application/usecase/pile_usecase.go
package usecase

import (
	"context"
	"strings"

	"booknest/internal/domain/common"
	orderdom "booknest/internal/domain/order"
	piledom "booknest/internal/domain/pile"
)

// PileGroup is one order's worth of piled books.
type PileGroup struct {
	OrderID string          `json:"orderId"`
	Order   *orderdom.Order `json:"order,omitempty"`
	Items   []piledom.Item  `json:"items"`
	Total   float64         `json:"total"`
}

type PileUsecase struct {
	pile   piledom.Repository
	orders orderdom.Repository
	clock  Clock
}

func NewPileUsecase(pile piledom.Repository, orders orderdom.Repository, clock Clock) *PileUsecase {
	if clock == nil {
		clock = systemClock{}
	}
	return &PileUsecase{pile: pile, orders: orders, clock: clock}
}

// List returns the caller's pile grouped by order, in first-added order.
func (uc *PileUsecase) List(ctx context.Context) ([]PileGroup, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	items, err := uc.pile.List(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	ids, groups := piledom.GroupByOrder(items)
	out := make([]PileGroup, 0, len(ids))
	for _, oid := range ids {
		g := PileGroup{OrderID: oid, Items: groups[oid]}
		for _, it := range g.Items {
			g.Total += it.Price * float64(it.Quantity)
		}
		if o, err := uc.orders.GetByID(ctx, oid); err == nil {
			g.Order = o
		}
		out = append(out, g)
	}
	return out, nil
}

// ShipNow converts a paid pile order into a shipping order and clears its pile items.
func (uc *PileUsecase) ShipNow(ctx context.Context, orderID string, info orderdom.CustomerInfo) (*orderdom.Order, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	o, err := uc.orders.GetByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(a.UserID) {
		return nil, orderdom.ErrForbidden
	}
	if o.Status == orderdom.StatusCancelled || o.PaymentStatus != orderdom.PaymentPaid {
		return nil, orderdom.ErrNotShippable
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	typ := orderdom.TypeShipping
	if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{
		OrderType:    &typ,
		CustomerInfo: &info,
		ShippedAt:    &now,
	}); err != nil {
		return nil, err
	}
	if _, err := uc.pile.DeleteByOrder(ctx, o.ID.String()); err != nil {
		return nil, err
	}

	o.OrderType = typ
	o.CustomerInfo = &info
	o.ShippedAt = common.At(now)
	return o, nil
}

// Remove deletes one of the caller's pile items.
func (uc *PileUsecase) Remove(ctx context.Context, itemID string) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	items, err := uc.pile.List(ctx, a.UserID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.ID.String() == strings.TrimSpace(itemID) {
			return uc.pile.Delete(ctx, it.ID.String())
		}
	}
	return piledom.ErrNotFound
}
