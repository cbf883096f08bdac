// backend/internal/adapters/in/http/handlers/cart_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"booknest/internal/application/persistence"
	usecase "booknest/internal/application/usecase"
	cartdom "booknest/internal/domain/cart"
)

// CartHandler serves the acting user's cart. Guests are identified by the
// X-Guest-Id header.
type CartHandler struct {
	uc *usecase.CartUsecase
}

func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

func (h *CartHandler) Routes(r chi.Router) {
	r.Use(requireActingUser)
	r.Get("/", h.get)
	r.Post("/items", h.add)
	r.Put("/items/{bookId}", h.setQty)
	r.Delete("/items/{bookId}", h.remove)
	r.Delete("/", h.clear)
}

// GuestID hands out a fresh guest id for anonymous carts.
func GuestID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"guestId": persistence.NewGuestID(time.Now())})
}

func requireActingUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := persistence.UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "login or X-Guest-Id required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type cartView struct {
	*cartdom.Cart
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

func viewOf(c *cartdom.Cart) cartView {
	return cartView{Cart: c, Count: c.Count(), Total: c.Total()}
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.uc.Get(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BookID string `json:"bookId"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	c, err := h.uc.AddBook(r.Context(), in.BookID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *CartHandler) setQty(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	c, err := h.uc.SetQty(r.Context(), chi.URLParam(r, "bookId"), in.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	c, err := h.uc.Remove(r.Context(), chi.URLParam(r, "bookId"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Clear(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
