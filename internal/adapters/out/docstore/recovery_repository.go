// backend/internal/adapters/out/docstore/recovery_repository.go
package docstore

import (
	"context"

	"booknest/internal/domain/common"
	userdom "booknest/internal/domain/user"
)

const ColRecovery = "password_recovery_requests"

type RecoveryRepository struct {
	store Store
}

func NewRecoveryRepository(s Store) *RecoveryRepository {
	return &RecoveryRepository{store: s}
}

var _ userdom.RecoveryRepository = (*RecoveryRepository)(nil)

func (r *RecoveryRepository) List(ctx context.Context) ([]userdom.RecoveryRequest, error) {
	return load[userdom.RecoveryRequest](ctx, r.store, ColRecovery)
}

func (r *RecoveryRepository) Create(ctx context.Context, req userdom.RecoveryRequest) (userdom.RecoveryRequest, error) {
	doc, err := toDocument(req)
	if err != nil {
		return req, err
	}
	res, err := r.store.Save(ctx, ColRecovery, doc, req.ID.String())
	if err != nil {
		return req, err
	}
	req.ID = common.ID(res.ID)
	return req, nil
}
