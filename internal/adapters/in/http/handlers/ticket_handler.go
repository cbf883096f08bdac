// backend/internal/adapters/in/http/handlers/ticket_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	usecase "booknest/internal/application/usecase"
	ticketdom "booknest/internal/domain/ticket"
)

type TicketHandler struct {
	uc *usecase.TicketUsecase
}

func NewTicketHandler(uc *usecase.TicketUsecase) *TicketHandler {
	return &TicketHandler{uc: uc}
}

// Buyer: /tickets
func (h *TicketHandler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listMine)
	r.Get("/unread", h.unread)
	r.Get("/{id}", h.get)
	r.Post("/{id}/messages", h.reply)
	r.Post("/{id}/read", h.markRead)
	r.Put("/{id}/status", h.setStatus)
}

// Admin: /admin/tickets
func (h *TicketHandler) Admin(r chi.Router) {
	r.Get("/", h.listAll)
	r.Get("/{id}", h.get)
	r.Post("/{id}/messages", h.reply)
	r.Put("/{id}/status", h.setStatus)
}

func (h *TicketHandler) create(w http.ResponseWriter, r *http.Request) {
	var in usecase.TicketInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	t, err := h.uc.Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TicketHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.uc.ListMine(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TicketHandler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.uc.ListAll(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TicketHandler) unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.uc.UnreadCount(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *TicketHandler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TicketHandler) reply(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string   `json:"content"`
		Images  []string `json:"images,omitempty"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	t, err := h.uc.Reply(r.Context(), chi.URLParam(r, "id"), in.Content, in.Images)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TicketHandler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TicketHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status ticketdom.Status `json:"status"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if err := h.uc.SetStatus(r.Context(), chi.URLParam(r, "id"), in.Status); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
