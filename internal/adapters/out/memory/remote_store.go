// internal/adapters/out/memory/remote_store.go
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"booknest/internal/application/persistence"
)

// ErrUnavailable is returned by every call while the store is set failing.
var ErrUnavailable = errors.New("memory remote: unavailable")

// RemoteStore is an in-process stand-in for the cloud document store.
// SetFailing simulates an outage.
type RemoteStore struct {
	mu      sync.Mutex
	cols    map[string]*collection
	failing  bool
	failNext int
	calls    int
}

type collection struct {
	order []string
	docs  map[string]persistence.Document
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{cols: map[string]*collection{}}
}

func (s *RemoteStore) Name() string { return "memory" }

func (s *RemoteStore) SetFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

// Calls returns how many operations reached the store (failed ones included).
func (s *RemoteStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FailNext makes the next n calls fail, then the store recovers on its own.
func (s *RemoteStore) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func (s *RemoteStore) enter() error {
	s.calls++
	if s.failing {
		return ErrUnavailable
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrUnavailable
	}
	return nil
}

func (s *RemoteStore) col(p persistence.CollectionPath) *collection {
	k := p.String()
	c, ok := s.cols[k]
	if !ok {
		c = &collection{docs: map[string]persistence.Document{}}
		s.cols[k] = c
	}
	return c
}

func (s *RemoteStore) Add(_ context.Context, p persistence.CollectionPath, doc persistence.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return "", err
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	d := doc.Clone()
	d[persistence.FieldID] = id
	c := s.col(p)
	c.order = append(c.order, id)
	c.docs[id] = d
	return id, nil
}

func (s *RemoteStore) Set(_ context.Context, p persistence.CollectionPath, id string, doc persistence.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return err
	}
	c := s.col(p)
	cur, ok := c.docs[id]
	if !ok {
		cur = persistence.Document{}
		c.order = append(c.order, id)
	} else {
		cur = cur.Clone()
	}
	for k, v := range doc {
		cur[k] = v
	}
	cur[persistence.FieldID] = id
	c.docs[id] = cur
	return nil
}

func (s *RemoteStore) Update(_ context.Context, p persistence.CollectionPath, id string, fields persistence.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return err
	}
	c := s.col(p)
	cur, ok := c.docs[id]
	if !ok {
		return persistence.ErrRemoteNotFound
	}
	cur = cur.Clone()
	for k, v := range fields {
		cur[k] = v
	}
	c.docs[id] = cur
	return nil
}

func (s *RemoteStore) Delete(_ context.Context, p persistence.CollectionPath, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return err
	}
	c := s.col(p)
	if _, ok := c.docs[id]; !ok {
		return persistence.ErrRemoteNotFound
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *RemoteStore) List(_ context.Context, p persistence.CollectionPath) ([]persistence.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	c := s.col(p)
	out := make([]persistence.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].Clone())
	}
	return out, nil
}

func (s *RemoteStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrUnavailable
	}
	return nil
}
