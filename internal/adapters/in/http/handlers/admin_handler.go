// backend/internal/adapters/in/http/handlers/admin_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booknest/internal/application/persistence"
	"booknest/internal/application/quota"
	usecase "booknest/internal/application/usecase"
)

// AdminHandler covers users, recovery requests and the storage/sync controls.
// Mounted behind middleware.RequireAdmin.
type AdminHandler struct {
	auth    *usecase.AuthUsecase
	backend *persistence.Backend
	monitor *quota.Monitor
	log     *zap.Logger
}

func NewAdminHandler(auth *usecase.AuthUsecase, backend *persistence.Backend, monitor *quota.Monitor, lg *zap.Logger) *AdminHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &AdminHandler{auth: auth, backend: backend, monitor: monitor, log: lg.Named("admin")}
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Delete("/users/{id}", h.deleteUser)
	r.Get("/recovery-requests", h.listRecovery)

	r.Get("/storage", h.storageStatus)
	r.Post("/storage/sweep", h.sweep)
	r.Post("/storage/repair-cart", h.repairCart)

	r.Get("/sync/pending", h.pending)
	r.Post("/sync/flush", h.flush)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listRecovery(w http.ResponseWriter, r *http.Request) {
	list, err := h.auth.ListRecoveryRequests(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// storageStatus returns the backend description plus the local quota status.
func (h *AdminHandler) storageStatus(w http.ResponseWriter, r *http.Request) {
	info, err := h.backend.StorageInfo(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := map[string]any{"backend": info}
	if h.monitor != nil {
		st, err := h.monitor.Check(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out["quota"] = st
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) sweep(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "quota monitor not configured")
		return
	}
	rep, st, err := h.monitor.Sweep(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	h.log.Info("manual sweep", zap.Int("removed", rep.Total()), zap.String("status", string(st.Level)))
	writeJSON(w, http.StatusOK, map[string]any{"removed": rep.Removed, "total": rep.Total(), "quota": st})
}

func (h *AdminHandler) repairCart(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "quota monitor not configured")
		return
	}
	rep, err := h.monitor.RepairCart(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *AdminHandler) pending(w http.ResponseWriter, r *http.Request) {
	ops, err := h.backend.Pending(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if ops == nil {
		ops = []persistence.PendingOp{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": h.backend.Online(), "pending": ops})
}

func (h *AdminHandler) flush(w http.ResponseWriter, r *http.Request) {
	rep, err := h.backend.Flush(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
