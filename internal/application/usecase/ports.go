// internal/application/usecase/ports.go
package usecase

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrUnauthenticated = errors.New("usecase: login required")
	ErrInvalidArgument = errors.New("usecase: invalid argument")
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a func to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// VerificationMailer delivers sign-up verification codes.
type VerificationMailer interface {
	SendVerificationCode(ctx context.Context, toEmail, code string) error
}

// ProofStorage stores payment-proof images and returns a URL to the stored object.
type ProofStorage interface {
	PutPaymentProof(ctx context.Context, orderID string, r io.Reader, contentType string) (string, error)
}

// SessionIssuer signs and verifies login sessions.
type SessionIssuer interface {
	Issue(a Actor) (token string, expiresAt time.Time, err error)
	Verify(token string) (Actor, error)
}
