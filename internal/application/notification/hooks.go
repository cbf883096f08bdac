// internal/application/notification/hooks.go
package notification

import notifdom "booknest/internal/domain/notification"

// Hooks are the UI-facing callbacks of pollers and watchers. Nil hooks are skipped.
type Hooks struct {
	// Toast is called once per emitted record.
	Toast func(rec notifdom.Record)
	// Render receives the full list after it changed.
	Render func(list []notifdom.Record)
	// Badge receives the unread count.
	Badge func(unread int)
}

func (h Hooks) toast(r notifdom.Record) {
	if h.Toast != nil {
		h.Toast(r)
	}
}

func (h Hooks) render(list []notifdom.Record) {
	if h.Render != nil {
		h.Render(list)
	}
}

func (h Hooks) badge(n int) {
	if h.Badge != nil {
		h.Badge(n)
	}
}
