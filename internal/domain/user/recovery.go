// backend/internal/domain/user/recovery.go
package user

import (
	"context"
	"errors"
	"strings"

	"booknest/internal/domain/common"
)

// RecoveryRequest is a password-recovery request an admin answers by hand
// (collection "password_recovery_requests").
type RecoveryRequest struct {
	ID           common.ID   `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	FacebookLink string      `json:"facebookLink"`
	RequestDate  common.Time `json:"requestDate,omitzero"`
	Status       string      `json:"status"`
}

const RecoveryPending = "pending"

var ErrInvalidFacebookLink = errors.New("user: please enter a valid Facebook profile link")

func ValidFacebookLink(link string) bool {
	l := strings.ToLower(strings.TrimSpace(link))
	return strings.Contains(l, "facebook.com") || strings.Contains(l, "fb.com")
}

type RecoveryRepository interface {
	List(ctx context.Context) ([]RecoveryRequest, error)
	Create(ctx context.Context, r RecoveryRequest) (RecoveryRequest, error)
}
