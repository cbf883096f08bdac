// internal/application/usecase/context.go
package usecase

import (
	"context"
	"strings"

	"booknest/internal/application/persistence"
	userdom "booknest/internal/domain/user"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Role   userdom.Role
}

func (a Actor) IsAdmin() bool { return a.Role == userdom.RoleAdmin }

type ctxKey string

const ctxKeyActor ctxKey = "actor"

// WithActor attaches the caller and scopes user collections (cart, pile) to them.
func WithActor(ctx context.Context, a Actor) context.Context {
	a.UserID = strings.TrimSpace(a.UserID)
	ctx = context.WithValue(ctx, ctxKeyActor, a)
	if a.UserID != "" {
		ctx = persistence.WithUserID(ctx, a.UserID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	if !ok || a.UserID == "" {
		return Actor{}, false
	}
	return a, true
}

func requireActor(ctx context.Context) (Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrUnauthenticated
	}
	return a, nil
}

func requireAdmin(ctx context.Context) (Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return a, err
	}
	if !a.IsAdmin() {
		return a, userdom.ErrNotAdmin
	}
	return a, nil
}

// SystemUserID identifies background jobs acting with admin rights.
const SystemUserID = "system"

// AsSystem returns ctx acting as the internal admin used by background jobs and the CLI.
func AsSystem(ctx context.Context) context.Context {
	return WithActor(ctx, Actor{UserID: SystemUserID, Name: "BookNest", Role: userdom.RoleAdmin})
}
