// backend/internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"booknest/internal/application/persistence"
	usecase "booknest/internal/application/usecase"
	bookdom "booknest/internal/domain/book"
	cartdom "booknest/internal/domain/cart"
	notifdom "booknest/internal/domain/notification"
	orderdom "booknest/internal/domain/order"
	piledom "booknest/internal/domain/pile"
	ticketdom "booknest/internal/domain/ticket"
	userdom "booknest/internal/domain/user"
	"booknest/internal/infra/imaging"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

// decodeJSON reads at most 1MiB of JSON into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	var pwErr *usecase.PasswordError
	if errors.As(err, &pwErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  userdom.ErrWeakPassword.Error(),
			"errors": pwErr.Check.Errors,
		})
		return
	}
	writeError(w, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated),
		errors.Is(err, userdom.ErrBadCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, userdom.ErrNotAdmin),
		errors.Is(err, userdom.ErrAdminLoginOnly),
		errors.Is(err, orderdom.ErrForbidden),
		errors.Is(err, ticketdom.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, userdom.ErrNotFound),
		errors.Is(err, orderdom.ErrNotFound),
		errors.Is(err, ticketdom.ErrNotFound),
		errors.Is(err, piledom.ErrNotFound),
		errors.Is(err, bookdom.ErrNotFound),
		errors.Is(err, notifdom.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, userdom.ErrEmailTaken),
		errors.Is(err, cartdom.ErrStockExceeded),
		errors.Is(err, orderdom.ErrNotCancellable),
		errors.Is(err, orderdom.ErrNotPayable),
		errors.Is(err, orderdom.ErrNotShippable),
		errors.Is(err, ticketdom.ErrClosed):
		return http.StatusConflict

	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, persistence.ErrStorageFull):
		return http.StatusInsufficientStorage

	case errors.Is(err, usecase.ErrInvalidArgument),
		errors.Is(err, usecase.ErrCartInvalidArgument),
		errors.Is(err, persistence.ErrInvalidArgument),
		errors.Is(err, userdom.ErrInvalidEmail),
		errors.Is(err, userdom.ErrInvalidName),
		errors.Is(err, userdom.ErrWeakPassword),
		errors.Is(err, userdom.ErrInvalidCode),
		errors.Is(err, userdom.ErrCodeExpired),
		errors.Is(err, userdom.ErrCodeNotFound),
		errors.Is(err, userdom.ErrInvalidPassword),
		errors.Is(err, userdom.ErrInvalidFacebookLink),
		errors.Is(err, orderdom.ErrInvalidStatus),
		errors.Is(err, orderdom.ErrEmptyItems),
		errors.Is(err, orderdom.ErrInvalidCustomer),
		errors.Is(err, orderdom.ErrInvalidType),
		errors.Is(err, ticketdom.ErrInvalidSubject),
		errors.Is(err, ticketdom.ErrInvalidDetails),
		errors.Is(err, ticketdom.ErrInvalidEmail),
		errors.Is(err, ticketdom.ErrEmptyMessage),
		errors.Is(err, piledom.ErrEmpty),
		errors.Is(err, cartdom.ErrInvalidCart),
		errors.Is(err, cartdom.ErrEmpty),
		errors.Is(err, bookdom.ErrInvalidTitle),
		errors.Is(err, bookdom.ErrInvalidPrice),
		errors.Is(err, bookdom.ErrInvalidStock):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}
