// backend/internal/application/usecase/auth_usecase.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"booknest/internal/domain/common"
	userdom "booknest/internal/domain/user"
)

// Policy
const (
	VerificationCodeTTL = 10 * time.Minute
)

// PasswordError carries the failed password rules.
type PasswordError struct {
	Check userdom.PasswordCheck
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("%s: %s", userdom.ErrWeakPassword, strings.Join(e.Check.Errors, "; "))
}

func (e *PasswordError) Unwrap() error { return userdom.ErrWeakPassword }

// Session is what a successful login returns.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userdom.User `json:"user"`
}

type RegisterInput struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	Phone           string `json:"phone,omitempty"`
	FacebookAccount string `json:"facebookAccount,omitempty"`
	Address         string `json:"address,omitempty"`
	Code            string `json:"code,omitempty"`
}

type pendingCode struct {
	code    string
	expires time.Time
}

// AuthUsecase handles accounts, sessions and verification codes.
type AuthUsecase struct {
	users    userdom.Repository
	recovery userdom.RecoveryRepository
	sessions SessionIssuer
	mailer   VerificationMailer
	clock    Clock
	log      *zap.Logger

	// RequireCode makes Register demand a code sent by SendVerificationCode.
	RequireCode bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	mu    sync.Mutex
	codes map[string]pendingCode
}

type AuthDeps struct {
	Users    userdom.Repository
	Recovery userdom.RecoveryRepository
	Sessions SessionIssuer
	Mailer   VerificationMailer
	Clock    Clock
	Logger   *zap.Logger
}

func NewAuthUsecase(d AuthDeps) *AuthUsecase {
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &AuthUsecase{
		users:    d.Users,
		recovery: d.Recovery,
		sessions: d.Sessions,
		mailer:   d.Mailer,
		clock:    d.Clock,
		log:      d.Logger.Named("auth_usecase"),
		codes:    map[string]pendingCode{},
	}
}

// ============================================================
// Verification codes
// ============================================================

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SendVerificationCode issues a 6-digit code valid for ten minutes. Without a
// mailer the code is only logged (demo mode).
func (uc *AuthUsecase) SendVerificationCode(ctx context.Context, email string) error {
	if !userdom.IsValidGmail(email) {
		return userdom.ErrInvalidEmail
	}
	key := userdom.NormalizeEmail(email)
	code, err := newCode()
	if err != nil {
		return err
	}

	uc.mu.Lock()
	uc.codes[key] = pendingCode{code: code, expires: uc.clock.Now().Add(VerificationCodeTTL)}
	uc.mu.Unlock()

	if uc.mailer == nil {
		uc.log.Info("[DEMO MODE] verification code", zap.String("email", key), zap.String("code", code))
		return nil
	}
	if err := uc.mailer.SendVerificationCode(ctx, strings.TrimSpace(email), code); err != nil {
		uc.log.Warn("verification mail failed, code logged instead", zap.String("email", key), zap.String("code", code), zap.Error(err))
	}
	return nil
}

// VerifyCode consumes the code on success or expiry.
func (uc *AuthUsecase) VerifyCode(email, code string) error {
	key := userdom.NormalizeEmail(email)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	p, ok := uc.codes[key]
	if !ok {
		return userdom.ErrCodeNotFound
	}
	if uc.clock.Now().After(p.expires) {
		delete(uc.codes, key)
		return userdom.ErrCodeExpired
	}
	if strings.TrimSpace(code) != p.code {
		return userdom.ErrInvalidCode
	}
	delete(uc.codes, key)
	return nil
}

// ============================================================
// Accounts
// ============================================================

func (uc *AuthUsecase) hash(pw string) (string, error) {
	cost := uc.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Register creates a buyer account and logs it in.
func (uc *AuthUsecase) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if !userdom.IsValidGmail(in.Email) {
		return Session{}, userdom.ErrInvalidEmail
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len([]rune(name)) > userdom.MaxNameLength {
		return Session{}, userdom.ErrInvalidName
	}
	if chk := userdom.ValidatePassword(in.Password); !chk.Valid {
		return Session{}, &PasswordError{Check: chk}
	}
	if uc.RequireCode {
		if err := uc.VerifyCode(in.Email, in.Code); err != nil {
			return Session{}, err
		}
	}

	if _, err := uc.users.GetByEmail(ctx, in.Email); err == nil {
		return Session{}, userdom.ErrEmailTaken
	} else if !errors.Is(err, userdom.ErrNotFound) {
		return Session{}, err
	}

	hash, err := uc.hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := uc.clock.Now()
	u, err := uc.users.Create(ctx, userdom.User{
		Email:           strings.TrimSpace(in.Email),
		Name:            name,
		Role:            userdom.RoleBuyer,
		Confirmed:       true,
		PasswordHash:    hash,
		Phone:           strings.TrimSpace(in.Phone),
		FacebookAccount: strings.TrimSpace(in.FacebookAccount),
		Address:         strings.TrimSpace(in.Address),
		CreatedAt:       common.At(now),
	})
	if err != nil {
		return Session{}, err
	}
	uc.log.Info("user registered", zap.String("userId", u.ID.String()))
	return uc.issue(u)
}

func (uc *AuthUsecase) authenticate(ctx context.Context, email, password string) (*userdom.User, error) {
	if !userdom.IsValidGmail(email) {
		return nil, userdom.ErrInvalidEmail
	}
	u, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userdom.ErrNotFound) {
			return nil, userdom.ErrBadCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, userdom.ErrBadCredentials
	}
	return u, nil
}

// Login is the buyer login. Admin accounts are refused here.
func (uc *AuthUsecase) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := uc.authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if u.IsAdmin() {
		return Session{}, userdom.ErrAdminLoginOnly
	}
	return uc.issue(*u)
}

// AdminLogin accepts admin accounts only.
func (uc *AuthUsecase) AdminLogin(ctx context.Context, email, password string) (Session, error) {
	u, err := uc.authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if !u.IsAdmin() {
		return Session{}, userdom.ErrNotAdmin
	}
	return uc.issue(*u)
}

func (uc *AuthUsecase) issue(u userdom.User) (Session, error) {
	if uc.sessions == nil {
		return Session{}, errors.New("auth_usecase: session issuer is not configured")
	}
	tok, exp, err := uc.sessions.Issue(actorOf(u))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, ExpiresAt: exp, User: u.Public()}, nil
}

func actorOf(u userdom.User) Actor {
	return Actor{UserID: u.ID.String(), Email: u.Email, Name: u.Name, Role: u.Role}
}

// Authenticate resolves a session token to its actor.
func (uc *AuthUsecase) Authenticate(token string) (Actor, error) {
	if uc.sessions == nil {
		return Actor{}, ErrUnauthenticated
	}
	return uc.sessions.Verify(token)
}

// ActorForEmail maps an externally verified identity (a Firebase ID token) onto
// a local account, creating a buyer on first sight.
func (uc *AuthUsecase) ActorForEmail(ctx context.Context, email, name string) (Actor, error) {
	e := strings.TrimSpace(email)
	if e == "" {
		return Actor{}, userdom.ErrInvalidEmail
	}
	u, err := uc.users.GetByEmail(ctx, e)
	if err == nil {
		return actorOf(*u), nil
	}
	if !errors.Is(err, userdom.ErrNotFound) {
		return Actor{}, err
	}
	n := strings.TrimSpace(name)
	if n == "" {
		n = strings.SplitN(e, "@", 2)[0]
	}
	created, err := uc.users.Create(ctx, userdom.User{
		Email:     e,
		Name:      n,
		Role:      userdom.RoleBuyer,
		Confirmed: true,
		CreatedAt: common.At(uc.clock.Now()),
	})
	if err != nil {
		return Actor{}, err
	}
	return actorOf(created), nil
}

// EnsureAdmin creates the admin account if it does not exist yet.
func (uc *AuthUsecase) EnsureAdmin(ctx context.Context, email, name, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	u, err := uc.users.GetByEmail(ctx, email)
	if err == nil {
		if !u.IsAdmin() {
			role := userdom.RoleAdmin
			return uc.users.Update(ctx, u.ID.String(), userdom.Patch{Role: &role})
		}
		return nil
	}
	if !errors.Is(err, userdom.ErrNotFound) {
		return err
	}
	hash, err := uc.hash(password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = "Admin"
	}
	_, err = uc.users.Create(ctx, userdom.User{
		Email:        strings.TrimSpace(email),
		Name:         name,
		Role:         userdom.RoleAdmin,
		Confirmed:    true,
		PasswordHash: hash,
		CreatedAt:    common.At(uc.clock.Now()),
	})
	if err == nil {
		uc.log.Info("admin account created", zap.String("email", userdom.NormalizeEmail(email)))
	}
	return err
}

// Me returns the caller's account.
func (uc *AuthUsecase) Me(ctx context.Context) (*userdom.User, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	u, err := uc.users.GetByID(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

type ProfileInput struct {
	Name            *string `json:"name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	FacebookAccount *string `json:"facebookAccount,omitempty"`
	Address         *string `json:"address,omitempty"`
}

func (uc *AuthUsecase) UpdateProfile(ctx context.Context, in ProfileInput) (*userdom.User, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	p := userdom.Patch{
		Name:            trimPtr(in.Name),
		Phone:           trimPtr(in.Phone),
		FacebookAccount: trimPtr(in.FacebookAccount),
		Address:         trimPtr(in.Address),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := uc.users.Update(ctx, a.UserID, p); err != nil {
		return nil, err
	}
	return uc.Me(ctx)
}

func (uc *AuthUsecase) ChangePassword(ctx context.Context, current, next string) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if _, err := uc.authenticate(ctx, a.Email, current); err != nil {
		return err
	}
	if chk := userdom.ValidatePassword(next); !chk.Valid {
		return &PasswordError{Check: chk}
	}
	hash, err := uc.hash(next)
	if err != nil {
		return err
	}
	return uc.users.Update(ctx, a.UserID, userdom.Patch{PasswordHash: &hash})
}

func (uc *AuthUsecase) ListUsers(ctx context.Context) ([]userdom.User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	all, err := uc.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i] = all[i].Public()
	}
	return all, nil
}

func (uc *AuthUsecase) DeleteUser(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if _, err := uc.users.GetByID(ctx, id); err != nil {
		return err
	}
	return uc.users.Delete(ctx, id)
}

// RequestPasswordRecovery logs a request an admin follows up on Facebook.
func (uc *AuthUsecase) RequestPasswordRecovery(ctx context.Context, email, facebookLink string) (userdom.RecoveryRequest, error) {
	if !userdom.ValidFacebookLink(facebookLink) {
		return userdom.RecoveryRequest{}, userdom.ErrInvalidFacebookLink
	}
	u, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		return userdom.RecoveryRequest{}, err
	}
	if u.PasswordHash == "" {
		return userdom.RecoveryRequest{}, userdom.ErrInvalidPassword
	}
	phone := u.Phone
	if phone == "" {
		phone = "N/A"
	}
	return uc.recovery.Create(ctx, userdom.RecoveryRequest{
		Email:        u.Email,
		Name:         u.Name,
		Phone:        phone,
		FacebookLink: strings.TrimSpace(facebookLink),
		RequestDate:  common.At(uc.clock.Now()),
		Status:       userdom.RecoveryPending,
	})
}

func (uc *AuthUsecase) ListRecoveryRequests(ctx context.Context) ([]userdom.RecoveryRequest, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return uc.recovery.List(ctx)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
