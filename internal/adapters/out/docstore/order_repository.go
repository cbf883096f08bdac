// backend/internal/adapters/out/docstore/order_repository.go
package docstore

import (
	"context"
	"errors"
	"strings"

	"booknest/internal/application/persistence"
	"booknest/internal/domain/common"
	orderdom "booknest/internal/domain/order"
)

type OrderRepository struct {
	store Store
}

func NewOrderRepository(s Store) *OrderRepository {
	return &OrderRepository{store: s}
}

var _ orderdom.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) List(ctx context.Context, userID string) ([]orderdom.Order, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("order_repository: store is nil")
	}
	all, err := load[orderdom.Order](ctx, r.store, ColOrders)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return all, nil
	}
	out := make([]orderdom.Order, 0, len(all))
	for _, o := range all {
		if o.UserID == uid {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*orderdom.Order, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	oid := persistence.IDString(id)
	for i := range all {
		if all[i].ID.String() == oid {
			return &all[i], nil
		}
	}
	return nil, orderdom.ErrNotFound
}

func (r *OrderRepository) Create(ctx context.Context, o orderdom.Order) (orderdom.Order, error) {
	if r == nil || r.store == nil {
		return o, errors.New("order_repository: store is nil")
	}
	doc, err := toDocument(o)
	if err != nil {
		return o, err
	}
	res, err := r.store.Save(ctx, ColOrders, doc, o.ID.String())
	if err != nil {
		return o, err
	}
	o.ID = common.ID(res.ID)
	return o, nil
}

func (r *OrderRepository) Update(ctx context.Context, id string, patch orderdom.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	fields := persistence.Document{}
	if patch.Status != nil {
		fields["status"] = string(*patch.Status)
	}
	if patch.PaymentStatus != nil {
		fields["paymentStatus"] = string(*patch.PaymentStatus)
	}
	if patch.Total != nil {
		fields["total"] = *patch.Total
	}
	if patch.PenaltyApplied != nil {
		fields["penaltyApplied"] = *patch.PenaltyApplied
	}
	if patch.PaymentProofURL != nil {
		fields["paymentProofUrl"] = *patch.PaymentProofURL
	}
	if patch.PaymentProofAt != nil {
		fields["paymentProofUploadedAt"] = persistence.Timestamp(*patch.PaymentProofAt)
	}
	if patch.OrderType != nil {
		fields["orderType"] = *patch.OrderType
	}
	if patch.CustomerInfo != nil {
		ci, err := toDocument(patch.CustomerInfo)
		if err != nil {
			return err
		}
		fields["customerInfo"] = map[string]any(ci)
	}
	if patch.ShippedAt != nil {
		fields["shippedAt"] = persistence.Timestamp(*patch.ShippedAt)
	}
	if patch.PaymentVerified != nil {
		fields["paymentVerifiedAt"] = persistence.Timestamp(*patch.PaymentVerified)
	}
	if patch.RejectReason != nil {
		fields["paymentRejectionReason"] = *patch.RejectReason
	}
	if patch.TrackingNumber != nil {
		fields["trackingNumber"] = *patch.TrackingNumber
	}
	_, err := r.store.Update(ctx, ColOrders, id, fields)
	return err
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status orderdom.Status) error {
	if !status.Valid() {
		return orderdom.ErrInvalidStatus
	}
	return r.Update(ctx, id, orderdom.Patch{Status: &status})
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, ColOrders, id)
	return err
}
