// internal/infra/localstore/memory.go
package localstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process memory.
// QuotaBytes (UTF-16 units of keys+values) is enforced when > 0.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]string
	quotaBytes int
	closed     bool
	hub        hub
}

func NewMemoryStore(quotaBytes int) *MemoryStore {
	return &MemoryStore{
		items:      map[string]string{},
		quotaBytes: quotaBytes,
	}
}

func (s *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.items[strings.TrimSpace(key)]
	return v, ok, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	k := strings.TrimSpace(key)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.checkQuotaLocked(k, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items[k] = value
	// signals leave in write order
	s.hub.publish(Change{Key: k, NewValue: value})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	k := strings.TrimSpace(key)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, existed := s.items[k]
	delete(s.items, k)
	if existed {
		s.hub.publish(Change{Key: k, Removed: true})
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Update holds the write lock across fn, which makes it atomic within the process.
func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	k := strings.TrimSpace(key)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cur, ok := s.items[k]
	next, err := fn(cur, ok)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	if err := s.checkQuotaLocked(k, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items[k] = next
	s.hub.publish(Change{Key: k, NewValue: next})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Subscribe(buffer int) (<-chan Change, func()) {
	return s.hub.subscribe(buffer)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.closeAll()
	return nil
}

func (s *MemoryStore) checkQuotaLocked(key, value string) error {
	if s.quotaBytes <= 0 {
		return nil
	}
	total := 0
	for k, v := range s.items {
		if k == key {
			continue
		}
		total += Length(k) + Length(v)
	}
	total += Length(key) + Length(value)
	if total > s.quotaBytes {
		return ErrQuotaExceeded
	}
	return nil
}
