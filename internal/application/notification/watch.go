// internal/application/notification/watch.go
package notification

import (
	"context"

	notifdom "booknest/internal/domain/notification"
	"booknest/internal/infra/localstore"
)

// Watcher re-renders a notification list as soon as the local store reports a
// change to it, including changes written by another process sharing the store.
// Order and ticket keys are left to the pollers' timers.
type Watcher struct {
	local  localstore.Store
	list   List
	userID string
	hooks  Hooks
}

func NewWatcher(local localstore.Store, list List, userID string, hooks Hooks) *Watcher {
	return &Watcher{local: local, list: list, userID: userID, hooks: hooks}
}

// Handle reacts to one change signal. It reports whether the change was rendered.
func (w *Watcher) Handle(c localstore.Change) bool {
	if c.Key != string(w.list) {
		return false
	}
	var all []notifdom.Record
	if c.Removed {
		all = []notifdom.Record{}
	} else {
		// trust the signal payload, not an in-memory copy
		all = notifdom.DecodeList(c.NewValue)
	}
	view := View(w.list, w.userID, all)
	w.hooks.render(view)
	w.hooks.badge(Unread(view))
	return true
}

func (w *Watcher) Run(ctx context.Context) error {
	ch, cancel := w.local.Subscribe(64)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-ch:
			if !ok {
				return nil
			}
			w.Handle(c)
		}
	}
}
