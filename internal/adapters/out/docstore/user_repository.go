// backend/internal/adapters/out/docstore/user_repository.go
package docstore

import (
	"context"

	"booknest/internal/application/persistence"
	"booknest/internal/domain/common"
	userdom "booknest/internal/domain/user"
)

type UserRepository struct {
	store Store
}

func NewUserRepository(s Store) *UserRepository {
	return &UserRepository{store: s}
}

var _ userdom.Repository = (*UserRepository)(nil)

func (r *UserRepository) List(ctx context.Context) ([]userdom.User, error) {
	return load[userdom.User](ctx, r.store, ColUsers)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userdom.User, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	uid := persistence.IDString(id)
	for i := range all {
		if all[i].ID.String() == uid {
			return &all[i], nil
		}
	}
	return nil, userdom.ErrNotFound
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userdom.User, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	want := userdom.NormalizeEmail(email)
	for i := range all {
		if userdom.NormalizeEmail(all[i].Email) == want {
			return &all[i], nil
		}
	}
	return nil, userdom.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, u userdom.User) (userdom.User, error) {
	doc, err := toDocument(u)
	if err != nil {
		return u, err
	}
	res, err := r.store.Save(ctx, ColUsers, doc, u.ID.String())
	if err != nil {
		return u, err
	}
	u.ID = common.ID(res.ID)
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, patch userdom.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	fields := persistence.Document{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Phone != nil {
		fields["phone"] = *patch.Phone
	}
	if patch.FacebookAccount != nil {
		fields["facebookAccount"] = *patch.FacebookAccount
	}
	if patch.Address != nil {
		fields["address"] = *patch.Address
	}
	if patch.Role != nil {
		fields["role"] = string(*patch.Role)
	}
	if patch.Confirmed != nil {
		fields["confirmed"] = *patch.Confirmed
	}
	if patch.PasswordHash != nil {
		fields["passwordHash"] = *patch.PasswordHash
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := r.store.Update(ctx, ColUsers, id, fields)
	return err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, ColUsers, id)
	return err
}
