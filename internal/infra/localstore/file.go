// internal/infra/localstore/file.go
package localstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	fileSuffix    = ".item"
	lockSuffix    = ".lock"
	staleLockAge  = 10 * time.Second
	lockRetryWait = 10 * time.Millisecond
)

// FileStore keeps one file per key inside Dir.
//
// Several processes may share Dir. With Watch enabled, writes made by another
// process are picked up through fsnotify and published to subscribers, which
// is how a second storefront instance sees a notification list change without
// waiting for its next poll.
type FileStore struct {
	dir string
	log *zap.Logger

	mu          sync.Mutex
	lastWritten map[string]*string // nil entry = removed by us
	closed      bool

	hub     hub
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type FileOptions struct {
	Watch  bool
	Logger *zap.Logger
}

func NewFileStore(dir string, opts FileOptions) (*FileStore, error) {
	d := strings.TrimSpace(dir)
	if d == "" {
		return nil, errors.New("localstore.file: dir is empty")
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, fmt.Errorf("localstore.file: mkdir %s: %w", d, err)
	}

	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	s := &FileStore{
		dir:         d,
		log:         lg.Named("localstore.file"),
		lastWritten: map[string]*string{},
	}

	if opts.Watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("localstore.file: watcher: %w", err)
		}
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("localstore.file: watch %s: %w", d, err)
		}
		s.watcher = w
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.run()
		s.log.Info("watching directory", zap.String("dir", d))
	}

	return s, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(strings.TrimSpace(key))+fileSuffix)
}

func keyFromPath(p string) (string, bool) {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	k, err := url.PathUnescape(strings.TrimSuffix(base, fileSuffix))
	if err != nil {
		return "", false
	}
	return k, true
}

func (s *FileStore) GetItem(_ context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s *FileStore) SetItem(ctx context.Context, key, value string) error {
	k := strings.TrimSpace(key)
	if s.isClosed() {
		return ErrClosed
	}
	unlock, err := s.lock(ctx, k)
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeLocked(k, value)
}

func (s *FileStore) RemoveItem(ctx context.Context, key string) error {
	k := strings.TrimSpace(key)
	if s.isClosed() {
		return ErrClosed
	}
	unlock, err := s.lock(ctx, k)
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(s.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastWritten[k] = nil
	s.hub.publish(Change{Key: k, Removed: true})
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k, ok := keyFromPath(e.Name()); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Update holds a lock file next to the key for the duration of fn, so it is
// atomic across every process sharing the directory.
func (s *FileStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := strings.TrimSpace(key)
	if s.isClosed() {
		return ErrClosed
	}
	unlock, err := s.lock(ctx, k)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok, err := s.GetItem(ctx, k)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	return s.writeLocked(k, next)
}

func (s *FileStore) Subscribe(buffer int) (<-chan Change, func()) {
	return s.hub.subscribe(buffer)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.watcher != nil {
		close(s.stopCh)
		<-s.doneCh
		if err := s.watcher.Close(); err != nil {
			s.log.Warn("close watcher", zap.Error(err))
		}
	}
	s.hub.closeAll()
	return nil
}

func (s *FileStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FileStore) writeLocked(key, value string) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	v := value
	s.mu.Lock()
	s.lastWritten[key] = &v
	s.hub.publish(Change{Key: key, NewValue: value})
	s.mu.Unlock()
	return nil
}

// lock acquires "<dir>/.<key>.lock" with O_EXCL, breaking locks older than staleLockAge.
func (s *FileStore) lock(ctx context.Context, key string) (func(), error) {
	lp := filepath.Join(s.dir, "."+url.PathEscape(key)+lockSuffix)
	for {
		f, err := os.OpenFile(lp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lp) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		if st, statErr := os.Stat(lp); statErr == nil && time.Since(st.ModTime()) > staleLockAge {
			s.log.Warn("breaking stale lock", zap.String("key", key))
			_ = os.Remove(lp)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
}

func (s *FileStore) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (s *FileStore) handleEvent(ev fsnotify.Event) {
	key, ok := keyFromPath(ev.Name)
	if !ok {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// read and publish under mu so a signal from here cannot overtake one of our own writes
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(ev.Name)
	removed := errors.Is(err, os.ErrNotExist)
	if err != nil && !removed {
		s.log.Warn("read changed item", zap.String("key", key), zap.Error(err))
		return
	}

	last, seen := s.lastWritten[key]
	switch {
	case removed && seen && last == nil:
		return
	case !removed && seen && last != nil && *last == string(b):
		return
	}
	if removed {
		s.lastWritten[key] = nil
		s.hub.publish(Change{Key: key, Removed: true})
		return
	}
	v := string(b)
	s.lastWritten[key] = &v
	s.hub.publish(Change{Key: key, NewValue: v})
}
