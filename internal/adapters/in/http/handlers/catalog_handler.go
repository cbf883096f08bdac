// backend/internal/adapters/in/http/handlers/catalog_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	usecase "booknest/internal/application/usecase"
	bookdom "booknest/internal/domain/book"
)

type CatalogHandler struct {
	uc *usecase.CatalogUsecase
}

func NewCatalogHandler(uc *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

// Public: GET /books, GET /books/{id}
func (h *CatalogHandler) Public(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

// Admin: /admin/books
func (h *CatalogHandler) Admin(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.uc.List(r.Context(), usecase.CatalogFilter{
		Query:     q.Get("q"),
		Condition: q.Get("condition"),
		Format:    q.Get("format"),
		InStock:   parseBool(q.Get("inStock")),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var in bookdom.Book
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	b, err := h.uc.Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	var in bookdom.Book
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	b, err := h.uc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.uc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
