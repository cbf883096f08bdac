// backend/internal/adapters/out/session/jwt_issuer.go
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"booknest/internal/application/usecase"
	userdom "booknest/internal/domain/user"
)

// Policy
const (
	DefaultTTL = 24 * time.Hour
	Issuer     = "booknest"
)

var (
	ErrEmptySecret  = errors.New("session: signing secret is empty")
	ErrInvalidToken = errors.New("session: invalid token")
	ErrExpiredToken = errors.New("session: token is expired")
)

type Claims struct {
	Email string       `json:"email"`
	Name  string       `json:"name,omitempty"`
	Role  userdom.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 session tokens. It implements usecase.SessionIssuer.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration, now func() time.Time) (*JWTIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

var _ usecase.SessionIssuer = (*JWTIssuer)(nil)

func (j *JWTIssuer) Issue(a usecase.Actor) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)
	claims := &Claims{
		Email: a.Email,
		Name:  a.Name,
		Role:  a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   a.UserID,
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

func (j *JWTIssuer) Verify(token string) (usecase.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return usecase.Actor{}, ErrExpiredToken
		}
		return usecase.Actor{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return usecase.Actor{}, ErrInvalidToken
	}
	return usecase.Actor{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
