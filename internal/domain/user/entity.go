// backend/internal/domain/user/entity.go
package user

import (
	"errors"
	"regexp"
	"strings"

	"booknest/internal/domain/common"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleBuyer Role = "buyer"
)

// User is an account record. Users are stored under the local key
// "booknest_users" (collection "users").
type User struct {
	ID              common.ID   `json:"id"`
	Email           string      `json:"email"`
	Name            string      `json:"name"`
	Role            Role        `json:"role"`
	Confirmed       bool        `json:"confirmed"`
	PasswordHash    string      `json:"passwordHash,omitempty"`
	Phone           string      `json:"phone,omitempty"`
	FacebookAccount string      `json:"facebookAccount,omitempty"`
	Address         string      `json:"address,omitempty"`
	CreatedAt       common.Time `json:"createdAt,omitzero"`
	UpdatedAt       common.Time `json:"updatedAt,omitzero"`
}

// Errors (single source)
var (
	ErrNotFound        = errors.New("user: not found")
	ErrInvalidEmail    = errors.New("user: please use a valid Gmail address (@gmail.com)")
	ErrInvalidName     = errors.New("user: invalid name")
	ErrEmailTaken      = errors.New("user: this Gmail is already registered")
	ErrWeakPassword    = errors.New("user: password does not meet security requirements")
	ErrBadCredentials  = errors.New("user: incorrect email or password")
	ErrAdminLoginOnly  = errors.New("user: admin accounts must use the admin login")
	ErrNotAdmin        = errors.New("user: admin role required")
	ErrInvalidCode     = errors.New("user: invalid verification code")
	ErrCodeExpired     = errors.New("user: verification code expired")
	ErrCodeNotFound    = errors.New("user: no verification code found")
	ErrInvalidPassword = errors.New("user: invalid password")
)

// Policy
var (
	MaxNameLength = 100
)

var gmailRe = regexp.MustCompile(`(?i)^[a-zA-Z0-9._%+-]+@gmail\.com$`)

// IsValidGmail accepts only @gmail.com addresses.
func IsValidGmail(email string) bool {
	return gmailRe.MatchString(strings.TrimSpace(email))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Public strips the password hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// Patch represents partial profile updates. A nil field means "no change".
type Patch struct {
	Name            *string
	Phone           *string
	FacebookAccount *string
	Address         *string
	Role            *Role
	Confirmed       *bool
	PasswordHash    *string
}

func (p Patch) Validate() error {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" || len([]rune(n)) > MaxNameLength {
			return ErrInvalidName
		}
	}
	if p.Role != nil && *p.Role != RoleAdmin && *p.Role != RoleBuyer {
		return errors.New("user: invalid role")
	}
	return nil
}
