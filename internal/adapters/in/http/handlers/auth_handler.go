// backend/internal/adapters/in/http/handlers/auth_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	usecase "booknest/internal/application/usecase"
	userdom "booknest/internal/domain/user"
)

// AuthHandler serves sign-up, login and the caller's own profile.
type AuthHandler struct {
	uc *usecase.AuthUsecase
}

func NewAuthHandler(uc *usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// Public routes: /auth/...
func (h *AuthHandler) Public(r chi.Router) {
	r.Post("/send-code", h.sendCode)
	r.Post("/verify-code", h.verifyCode)
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/admin/login", h.adminLogin)
	r.Post("/recovery", h.recovery)
	r.Post("/password-strength", h.passwordStrength)
}

// Private routes: /me/...
func (h *AuthHandler) Private(r chi.Router) {
	r.Get("/", h.me)
	r.Patch("/", h.updateProfile)
	r.Post("/password", h.changePassword)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

func (h *AuthHandler) sendCode(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.SendVerificationCode(r.Context(), in.Email); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *AuthHandler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.VerifyCode(in.Email, in.Code); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in usecase.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	s, err := h.uc.Register(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	s, err := h.uc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *AuthHandler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	s, err := h.uc.AdminLogin(r.Context(), in.Email, in.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *AuthHandler) recovery(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email        string `json:"email"`
		FacebookLink string `json:"facebookLink"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	req, err := h.uc.RequestPasswordRecovery(r.Context(), in.Email, in.FacebookLink)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *AuthHandler) passwordStrength(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	writeJSON(w, http.StatusOK, userdom.ValidatePassword(in.Password))
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.uc.Me(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in usecase.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	u, err := h.uc.UpdateProfile(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Current string `json:"currentPassword"`
		Next    string `json:"newPassword"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.ChangePassword(r.Context(), in.Current, in.Next); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
