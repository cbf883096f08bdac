// backend/internal/adapters/in/http/handlers/pile_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	usecase "booknest/internal/application/usecase"
	orderdom "booknest/internal/domain/order"
)

type PileHandler struct {
	uc *usecase.PileUsecase
}

func NewPileHandler(uc *usecase.PileUsecase) *PileHandler {
	return &PileHandler{uc: uc}
}

func (h *PileHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{orderId}/ship", h.shipNow)
	r.Delete("/items/{id}", h.remove)
}

func (h *PileHandler) list(w http.ResponseWriter, r *http.Request) {
	groups, err := h.uc.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *PileHandler) shipNow(w http.ResponseWriter, r *http.Request) {
	var in orderdom.CustomerInfo
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	o, err := h.uc.ShipNow(r.Context(), chi.URLParam(r, "orderId"), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *PileHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
