// backend/internal/adapters/in/http/handlers/notification_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booknest/internal/application/notification"
	usecase "booknest/internal/application/usecase"
	notifdom "booknest/internal/domain/notification"
	ticketdom "booknest/internal/domain/ticket"
	"booknest/internal/infra/localstore"
)

// StreamKeepAlive is how often an idle event stream gets a comment line.
const StreamKeepAlive = 25 * time.Second

// NotificationHandler serves one notification list: the caller's own records
// for buyers, or the shared admin list.
type NotificationHandler struct {
	store *notification.Store
	local localstore.Store
	list  notification.List
	log   *zap.Logger

	// buyer streams only
	tickets     ticketdom.Repository
	userEvery   time.Duration
	ticketEvery time.Duration
}

func NewNotificationHandler(store *notification.Store, local localstore.Store, list notification.List, lg *zap.Logger) *NotificationHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &NotificationHandler{store: store, local: local, list: list, log: lg.Named("notifications")}
}

// WithPollers makes every buyer stream run a UserPoller and, when tickets is
// set, a TicketUnreadPoller for the caller. Zero intervals use the pollers' defaults.
func (h *NotificationHandler) WithPollers(tickets ticketdom.Repository, userEvery, ticketEvery time.Duration) *NotificationHandler {
	h.tickets = tickets
	h.userEvery = userEvery
	h.ticketEvery = ticketEvery
	return h
}

func (h *NotificationHandler) Routes(r chi.Router) {
	r.Get("/", h.listRecords)
	r.Get("/unread", h.unread)
	r.Get("/stream", h.stream)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Delete("/{id}", h.delete)
	r.Delete("/", h.clear)
}

// owner is "" for the admin list.
func (h *NotificationHandler) owner(r *http.Request) (string, error) {
	if h.list == notification.AdminList {
		return "", nil
	}
	a, ok := usecase.ActorFromContext(r.Context())
	if !ok {
		return "", usecase.ErrUnauthenticated
	}
	return a.UserID, nil
}

// resolved rewrites links for the page named by ?path=.
func resolved(list []notifdom.Record, currentPath string) []notifdom.Record {
	out := make([]notifdom.Record, len(list))
	for i, rec := range list {
		rec.Link = notification.ResolveLink(rec.Link, currentPath)
		out[i] = rec
	}
	return out
}

func (h *NotificationHandler) listRecords(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	list, err := h.store.Records(r.Context(), h.list, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if limit := parseIntDefault(r.URL.Query().Get("limit"), 0); limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": resolved(list, r.URL.Query().Get("path")),
		"unread":        notification.Unread(list),
	})
}

func (h *NotificationHandler) unread(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	n, err := h.store.UnreadCount(r.Context(), h.list, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.MarkRead(r.Context(), h.list, uid, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.MarkAllRead(r.Context(), h.list, uid); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) delete(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), h.list, uid, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.Clear(r.Context(), h.list, uid); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pollEvent struct {
	name   string
	unread int
}

// buyerPollers starts the caller's badge pollers. Their results arrive on the
// returned channel; stop cancels them and waits for them to exit.
func (h *NotificationHandler) buyerPollers(ctx context.Context, a usecase.Actor) (<-chan pollEvent, func() error) {
	// closed once the stream handler stops reading
	quit := make(chan struct{})
	events := make(chan pollEvent, 4)
	push := func(name string) func(int) {
		return func(n int) {
			select {
			case events <- pollEvent{name: name, unread: n}:
			case <-quit:
			case <-ctx.Done():
			}
		}
	}

	runners := []notification.Runnable{
		notification.NewUserPoller(h.store, a.UserID, h.userEvery,
			notification.Hooks{Badge: push("unread")}, h.log),
	}
	if h.tickets != nil {
		runners = append(runners, notification.NewTicketUnreadPoller(h.tickets, a.Email, h.ticketEvery,
			notification.Hooks{Badge: push("unread-tickets")}, h.log))
	}

	stop := notification.Start(ctx, runners...)
	return events, func() error {
		close(quit)
		return stop()
	}
}

// stream pushes the list and unread badge as server-sent events whenever the
// list key changes in the local store, including writes by other processes.
// Buyer streams also carry the pollers' periodic badge counts.
//
//	event: notifications   data: [...]
//	event: unread          data: {"unread":n}
//	event: unread-tickets  data: {"unread":n}
func (h *NotificationHandler) stream(w http.ResponseWriter, r *http.Request) {
	uid, err := h.owner(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	path := r.URL.Query().Get("path")

	send := func(event string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}
	hooks := notification.Hooks{
		Render: func(list []notifdom.Record) { send("notifications", resolved(list, path)) },
		Badge:  func(n int) { send("unread", map[string]int{"unread": n}) },
	}
	watcher := notification.NewWatcher(h.local, h.list, uid, hooks)

	// subscribe before the first read so no change falls in between
	ch, cancel := h.local.Subscribe(16)
	defer cancel()

	send("connected", map[string]string{"list": string(h.list)})
	if list, err := h.store.Records(ctx, h.list, uid); err == nil {
		hooks.Render(list)
		hooks.Badge(notification.Unread(list))
	}

	var polled <-chan pollEvent
	if h.list == notification.UserList {
		a, _ := usecase.ActorFromContext(ctx)
		events, stop := h.buyerPollers(ctx, a)
		defer func() { _ = stop() }()
		polled = events
	}
	// last count each poller reported, so an unchanged badge is not resent
	lastPolled := map[string]int{}

	ping := time.NewTicker(StreamKeepAlive)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			watcher.Handle(c)
		case ev := <-polled:
			if n, seen := lastPolled[ev.name]; seen && n == ev.unread {
				continue
			}
			lastPolled[ev.name] = ev.unread
			send(ev.name, map[string]int{"unread": ev.unread})
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
