// internal/infra/localstore/store.go
package localstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"unicode/utf16"
)

var (
	// ErrQuotaExceeded is returned when a write would push the store past its capacity.
	ErrQuotaExceeded = errors.New("localstore: quota exceeded")
	// ErrConflict is returned when an atomic update could not win its compare-and-swap.
	ErrConflict = errors.New("localstore: update conflict")
	// ErrSkipWrite may be returned by an UpdateFunc to leave the key untouched.
	ErrSkipWrite = errors.New("localstore: skip write")
	ErrClosed    = errors.New("localstore: store is closed")
)

// Change is one storage-change signal.
// NewValue is the serialized value after the change ("" when Removed).
type Change struct {
	Key      string
	NewValue string
	Removed  bool
}

// UpdateFunc receives the current value of a key and returns the value to store.
type UpdateFunc func(current string, exists bool) (string, error)

// Store is a flat string key/value namespace holding JSON-encoded collections.
//
// Update is the atomic read-modify-write primitive: fn runs against the value
// that is actually replaced, so two concurrent appends never overwrite each other.
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Subscribe returns a channel of change signals and a cancel func.
	Subscribe(buffer int) (<-chan Change, func())

	Close() error
}

// Length returns the length of s in UTF-16 code units (the unit browsers use
// when accounting localStorage quota).
func Length(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Snapshot reads every key/value pair from s.
func Snapshot(ctx context.Context, s Store) (map[string]string, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.GetItem(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// MigrateKeys moves values from legacy keys to their current names.
// A legacy key is only moved when the current key is absent; it is removed afterwards.
func MigrateKeys(ctx context.Context, s Store, aliases map[string]string) (int, error) {
	legacy := make([]string, 0, len(aliases))
	for k := range aliases {
		legacy = append(legacy, k)
	}
	sort.Strings(legacy)

	moved := 0
	for _, old := range legacy {
		cur := aliases[old]
		v, ok, err := s.GetItem(ctx, old)
		if err != nil {
			return moved, err
		}
		if !ok {
			continue
		}
		if _, exists, err := s.GetItem(ctx, cur); err != nil {
			return moved, err
		} else if !exists {
			if err := s.SetItem(ctx, cur, v); err != nil {
				return moved, err
			}
			moved++
		}
		if err := s.RemoveItem(ctx, old); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// hub fans change signals out to subscribers.
// A subscriber whose buffer is full misses the signal; readers re-read on their next tick.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Change
}

func (h *hub) subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	h.mu.Lock()
	if h.subs == nil {
		h.subs = map[int]chan Change{}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
			h.mu.Unlock()
		})
	}
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
