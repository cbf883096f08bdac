// backend/internal/adapters/in/http/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"booknest/internal/application/persistence"
	usecase "booknest/internal/application/usecase"
)

// GuestHeader carries the browser-generated guest id for anonymous carts.
const GuestHeader = "X-Guest-Id"

// SessionVerifier resolves local session tokens and maps external identities
// onto local accounts. *usecase.AuthUsecase satisfies it.
type SessionVerifier interface {
	Authenticate(token string) (usecase.Actor, error)
	ActorForEmail(ctx context.Context, email, name string) (usecase.Actor, error)
}

// IDTokenVerifier is the part of the firebase auth client we use.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// AuthMiddleware reads
//
//   - Authorization: Bearer <token>
//
// where token is a local session or a Firebase ID token, and puts the actor
// into the context. Requests without a token pass through as guests.
type AuthMiddleware struct {
	Sessions SessionVerifier
	Firebase IDTokenVerifier
	Logger   *zap.Logger
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	lg := m.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			if gid := strings.TrimSpace(r.Header.Get(GuestHeader)); gid != "" {
				// only ids minted by GET /api/guest-id; a user id here would open that user's data
				if !persistence.IsGuestID(gid) {
					unauthorized(w, "invalid guest id")
					return
				}
				ctx = persistence.WithUserID(ctx, gid)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			unauthorized(w, "empty bearer token")
			return
		}

		actor, ok := m.resolve(ctx, token, lg)
		if !ok {
			unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(usecase.WithActor(ctx, actor)))
	})
}

func (m *AuthMiddleware) resolve(ctx context.Context, token string, lg *zap.Logger) (usecase.Actor, bool) {
	if m.Sessions != nil {
		if a, err := m.Sessions.Authenticate(token); err == nil {
			return a, true
		}
	}
	if m.Firebase == nil || m.Sessions == nil {
		return usecase.Actor{}, false
	}

	fb, err := m.Firebase.VerifyIDToken(ctx, token)
	if err != nil {
		return usecase.Actor{}, false
	}
	email := claimString(fb.Claims, "email")
	name := claimString(fb.Claims, "name")
	a, err := m.Sessions.ActorForEmail(ctx, email, name)
	if err != nil {
		lg.Warn("firebase identity rejected", zap.String("uid", fb.UID), zap.Error(err))
		return usecase.Actor{}, false
	}
	return a, true
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// RequireUser rejects requests without an authenticated actor.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := usecase.ActorFromContext(r.Context()); !ok {
			unauthorized(w, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everyone but admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := usecase.ActorFromContext(r.Context())
		if !ok {
			unauthorized(w, "login required")
			return
		}
		if !a.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentActor returns the actor stored by AuthMiddleware.
func CurrentActor(r *http.Request) (usecase.Actor, bool) {
	return usecase.ActorFromContext(r.Context())
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
