// internal/application/persistence/identity.go
package persistence

import (
	"context"
	"strings"

	"booknest/internal/infra/localstore"
)

// KeyGuestUserID holds the persistent anonymous id in the local store.
const KeyGuestUserID = "guestUserId"

type ctxKeyUser struct{}

// WithUserID attaches the authenticated user id to ctx.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, strings.TrimSpace(uid))
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(ctxKeyUser{}).(string)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// ActingUserID returns the authenticated user id, falling back to the
// persistent guest id (created on first use).
func (b *Backend) ActingUserID(ctx context.Context) (string, error) {
	if uid, ok := UserIDFromContext(ctx); ok {
		return uid, nil
	}
	return b.GuestID(ctx)
}

// GuestID returns the guest id, generating and storing one when absent.
func (b *Backend) GuestID(ctx context.Context) (string, error) {
	var id string
	err := b.local.Update(ctx, KeyGuestUserID, func(cur string, ok bool) (string, error) {
		if s := strings.TrimSpace(cur); ok && s != "" {
			id = s
			return "", localstore.ErrSkipWrite
		}
		id = NewGuestID(b.now())
		return id, nil
	})
	if err != nil {
		return "", wrapLocal(err)
	}
	return id, nil
}
