// backend/internal/adapters/in/http/handlers/order_handler.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	usecase "booknest/internal/application/usecase"
	orderdom "booknest/internal/domain/order"
	"booknest/internal/infra/imaging"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// Buyer: /orders
func (h *OrderHandler) Routes(r chi.Router) {
	r.Post("/", h.checkout)
	r.Get("/", h.listMine)
	r.Get("/{id}", h.get)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/payment-proof", h.uploadProof)
}

// Admin: /admin/orders
func (h *OrderHandler) Admin(r chi.Router) {
	r.Get("/", h.listAll)
	r.Get("/{id}", h.get)
	r.Put("/{id}/status", h.setStatus)
	r.Post("/{id}/verify", h.verify)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/ship", h.ship)
	r.Delete("/{id}", h.delete)
	r.Post("/penalties", h.penalties)
}

func (h *OrderHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var in usecase.CheckoutInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	o, err := h.uc.Checkout(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.uc.ListMine(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadProof takes multipart form field "proof".
func (h *OrderHandler) uploadProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeErr(w, imaging.ErrTooLarge)
			return
		}
		badRequest(w, "invalid multipart form")
		return
	}
	file, hdr, err := r.FormFile("proof")
	if err != nil {
		badRequest(w, "proof file is required")
		return
	}
	defer file.Close()

	if hdr.Size > imaging.MaxUploadBytes {
		writeErr(w, imaging.ErrTooLarge)
		return
	}
	ct := hdr.Header.Get("Content-Type")
	if !imaging.Allowed(ct) {
		writeErr(w, imaging.ErrUnsupportedType)
		return
	}

	o, err := h.uc.UploadPaymentProof(r.Context(), chi.URLParam(r, "id"), file, ct)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.uc.ListAll(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		out := list[:0]
		for _, o := range list {
			if string(o.Status) == s {
				out = append(out, o)
			}
		}
		list = out
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrderHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status orderdom.Status `json:"status"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in.Status); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) verify(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.VerifyPayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) reject(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.RejectPayment(r.Context(), chi.URLParam(r, "id"), in.Reason); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) ship(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.Ship(r.Context(), chi.URLParam(r, "id"), in.TrackingNumber); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) penalties(w http.ResponseWriter, r *http.Request) {
	n, err := h.uc.ApplyOverduePenalties(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": n})
}
