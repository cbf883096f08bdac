// internal/application/persistence/backend.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"booknest/internal/infra/localstore"
)

// ErrStorageFull is returned when the local store rejects a write for capacity.
var ErrStorageFull = errors.New("persistence: local storage full")

// ErrInvalidArgument covers empty collection names and ids.
var ErrInvalidArgument = errors.New("persistence: invalid argument")

// Source tells which store served a call.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Result is returned by every write.
type Result struct {
	ID      string `json:"id"`
	Source  Source `json:"source"`
	Offline bool   `json:"offline"`
	Queued  bool   `json:"queued"`
}

// LoadResult is returned by Load.
type LoadResult struct {
	Documents []Document `json:"documents"`
	Source    Source     `json:"source"`
}

// DefaultGlobalCollections are shared across users. Every other collection is user-scoped.
var DefaultGlobalCollections = []string{"books", "orders", "users", "tickets", "password_recovery_requests"}

// DefaultLocalKeys maps collections onto their historical local key names.
var DefaultLocalKeys = map[string]string{
	"users": "booknest_users",
	"books": "booksData",
}

// LegacyKeyAliases are renamed at startup (old -> current).
var LegacyKeyAliases = map[string]string{
	"customerServiceTickets": "tickets",
	"currentUser":            "booknest_current_user",
}

const DefaultCapacityBytes = 5 * 1024 * 1024

type Options struct {
	Local  localstore.Store
	Remote RemoteStore // nil = local only

	Logger            *zap.Logger
	GlobalCollections []string
	LocalKeys         map[string]string
	FlushPolicy       FlushPolicy
	CapacityBytes     int64
	Now               func() time.Time
}

// Backend is the remote-first document store with a local mirror.
type Backend struct {
	local  localstore.Store
	remote RemoteStore
	log    *zap.Logger

	global    map[string]struct{}
	localKeys map[string]string
	policy    FlushPolicy
	capacity  int64
	now       func() time.Time

	online  atomic.Bool
	flushMu sync.Mutex
}

func New(opts Options) (*Backend, error) {
	if opts.Local == nil {
		return nil, errors.New("persistence: local store is nil")
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	globals := opts.GlobalCollections
	if len(globals) == 0 {
		globals = DefaultGlobalCollections
	}
	keys := opts.LocalKeys
	if keys == nil {
		keys = DefaultLocalKeys
	}
	capacity := opts.CapacityBytes
	if capacity <= 0 {
		capacity = DefaultCapacityBytes
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	b := &Backend{
		local:     opts.Local,
		remote:    opts.Remote,
		log:       lg.Named("persistence"),
		global:    make(map[string]struct{}, len(globals)),
		localKeys: keys,
		policy:    opts.FlushPolicy.withDefaults(),
		capacity:  capacity,
		now:       now,
	}
	for _, c := range globals {
		b.global[strings.TrimSpace(c)] = struct{}{}
	}
	b.online.Store(opts.Remote != nil)

	if opts.Remote != nil {
		b.log.Info("remote backend configured", zap.String("remote", opts.Remote.Name()))
	} else {
		b.log.Info("running in local-only mode")
	}
	return b, nil
}

func (b *Backend) Local() localstore.Store { return b.local }

func (b *Backend) HasRemote() bool { return b.remote != nil }

func (b *Backend) Online() bool { return b.online.Load() }

func (b *Backend) Now() time.Time { return b.now() }

// MigrateLegacyKeys renames historical local keys.
func (b *Backend) MigrateLegacyKeys(ctx context.Context) error {
	n, err := localstore.MigrateKeys(ctx, b.local, LegacyKeyAliases)
	if err != nil {
		return wrapLocal(err)
	}
	if n > 0 {
		b.log.Info("migrated legacy keys", zap.Int("count", n))
	}
	return nil
}

// IsGlobal reports whether collection is shared across users.
func (b *Backend) IsGlobal(collection string) bool {
	_, ok := b.global[strings.TrimSpace(collection)]
	return ok
}

// Path resolves the remote path for collection under the acting user.
func (b *Backend) Path(ctx context.Context, collection string) (CollectionPath, error) {
	c := strings.TrimSpace(collection)
	if c == "" {
		return CollectionPath{}, fmt.Errorf("%w: collection is empty", ErrInvalidArgument)
	}
	if b.IsGlobal(c) {
		return CollectionPath{Collection: c}, nil
	}
	uid, err := b.ActingUserID(ctx)
	if err != nil {
		return CollectionPath{}, err
	}
	return CollectionPath{Collection: c, UserID: uid}, nil
}

// LocalKey maps a collection path onto its local store key.
func (b *Backend) LocalKey(p CollectionPath) string {
	if p.Scoped() {
		return ScopedKey(p.Collection, p.UserID)
	}
	if k, ok := b.localKeys[p.Collection]; ok && k != "" {
		return k
	}
	return p.Collection
}

// ScopedKey is the local key of a user-scoped collection.
func ScopedKey(collection, uid string) string {
	return collection + "@" + uid
}

// SplitScopedKey is the inverse of ScopedKey.
func SplitScopedKey(key string) (collection, uid string, ok bool) {
	i := strings.IndexByte(key, '@')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func (b *Backend) remoteUsable() bool {
	return b.remote != nil && b.online.Load()
}

// ----------------------------------------------------------------------------
// Save / Load / Update / Delete
// ----------------------------------------------------------------------------

func (b *Backend) Save(ctx context.Context, collection string, doc Document, id string) (Result, error) {
	p, err := b.Path(ctx, collection)
	if err != nil {
		return Result{}, err
	}
	data := doc.Clone()
	id = strings.TrimSpace(id)
	if id == "" {
		id = data.ID()
	}

	if b.remoteUsable() {
		rid := id
		var rerr error
		if rid == "" {
			body := Normalize(data)
			delete(body, FieldID)
			rid, rerr = b.remote.Add(ctx, p, body)
		} else {
			body := Normalize(data)
			body[FieldID] = rid
			rerr = b.remote.Set(ctx, p, rid, body)
		}
		if rerr == nil {
			data[FieldID] = rid
			if err := b.mergeLocal(ctx, p, rid, data, true); err != nil {
				b.log.Warn("cache after remote save failed", zap.String("path", p.String()), zap.Error(err))
			}
			return Result{ID: rid, Source: SourceRemote}, nil
		}
		b.log.Warn("remote save failed, using local store",
			zap.String("path", p.String()), zap.String("id", rid), zap.Error(rerr))
	}

	if id == "" {
		id = NewClientID(b.now())
	}
	data[FieldID] = id
	if err := b.mergeLocal(ctx, p, id, data, true); err != nil {
		return Result{}, err
	}
	res := Result{ID: id, Source: SourceLocal, Offline: true}
	if b.remote != nil {
		if err := b.enqueue(ctx, PendingOp{Op: OpSave, Collection: p.Collection, UserID: p.UserID, ID: id, Document: data}); err != nil {
			return res, err
		}
		res.Queued = true
	}
	return res, nil
}

func (b *Backend) Load(ctx context.Context, collection string) (LoadResult, error) {
	p, err := b.Path(ctx, collection)
	if err != nil {
		return LoadResult{}, err
	}

	if b.remoteUsable() {
		docs, rerr := b.remote.List(ctx, p)
		if rerr == nil {
			docs, err = b.overlayPending(ctx, p, docs)
			if err != nil {
				b.log.Warn("read pending queue", zap.Error(err))
			}
			if err := b.replaceLocal(ctx, p, docs); err != nil {
				b.log.Warn("cache after remote load failed", zap.String("path", p.String()), zap.Error(err))
			}
			return LoadResult{Documents: docs, Source: SourceRemote}, nil
		}
		b.log.Warn("remote load failed, using local cache", zap.String("path", p.String()), zap.Error(rerr))
	}

	docs, err := b.readLocal(ctx, p)
	if err != nil {
		return LoadResult{Source: SourceLocal}, err
	}
	return LoadResult{Documents: docs, Source: SourceLocal}, nil
}

func (b *Backend) Update(ctx context.Context, collection, id string, fields Document) (Result, error) {
	p, err := b.Path(ctx, collection)
	if err != nil {
		return Result{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, fmt.Errorf("%w: id is empty", ErrInvalidArgument)
	}
	patch := fields.Clone()
	delete(patch, FieldID)

	if b.remoteUsable() {
		rerr := b.remote.Update(ctx, p, id, Normalize(patch))
		if rerr == nil {
			if err := b.mergeLocal(ctx, p, id, patch, false); err != nil {
				b.log.Warn("cache after remote update failed", zap.String("path", p.String()), zap.Error(err))
			}
			return Result{ID: id, Source: SourceRemote}, nil
		}
		b.log.Warn("remote update failed, using local store",
			zap.String("path", p.String()), zap.String("id", id), zap.Error(rerr))
	}

	if err := b.mergeLocal(ctx, p, id, patch, false); err != nil {
		return Result{}, err
	}
	res := Result{ID: id, Source: SourceLocal, Offline: true}
	if b.remote != nil {
		if err := b.enqueue(ctx, PendingOp{Op: OpUpdate, Collection: p.Collection, UserID: p.UserID, ID: id, Document: patch}); err != nil {
			return res, err
		}
		res.Queued = true
	}
	return res, nil
}

func (b *Backend) Delete(ctx context.Context, collection, id string) (Result, error) {
	p, err := b.Path(ctx, collection)
	if err != nil {
		return Result{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, fmt.Errorf("%w: id is empty", ErrInvalidArgument)
	}

	if b.remoteUsable() {
		rerr := b.remote.Delete(ctx, p, id)
		if rerr == nil || errors.Is(rerr, ErrRemoteNotFound) {
			if err := b.removeLocal(ctx, p, id); err != nil {
				b.log.Warn("cache after remote delete failed", zap.String("path", p.String()), zap.Error(err))
			}
			return Result{ID: id, Source: SourceRemote}, nil
		}
		b.log.Warn("remote delete failed, using local store",
			zap.String("path", p.String()), zap.String("id", id), zap.Error(rerr))
	}

	if err := b.removeLocal(ctx, p, id); err != nil {
		return Result{}, err
	}
	res := Result{ID: id, Source: SourceLocal, Offline: true}
	if b.remote != nil {
		if err := b.enqueue(ctx, PendingOp{Op: OpDelete, Collection: p.Collection, UserID: p.UserID, ID: id}); err != nil {
			return res, err
		}
		res.Queued = true
	}
	return res, nil
}

// ----------------------------------------------------------------------------
// local mirror
// ----------------------------------------------------------------------------

func (b *Backend) readLocal(ctx context.Context, p CollectionPath) ([]Document, error) {
	key := b.LocalKey(p)
	raw, ok, err := b.local.GetItem(ctx, key)
	if err != nil {
		return nil, wrapLocal(err)
	}
	if !ok {
		return []Document{}, nil
	}
	docs, valid := DecodeDocuments(raw)
	if !valid {
		b.log.Warn("malformed local collection treated as empty", zap.String("key", key))
	}
	return docs, nil
}

// ReadKey decodes a raw local key (used by maintenance jobs).
func (b *Backend) ReadKey(ctx context.Context, key string) ([]Document, error) {
	raw, ok, err := b.local.GetItem(ctx, key)
	if err != nil {
		return nil, wrapLocal(err)
	}
	if !ok {
		return []Document{}, nil
	}
	docs, _ := DecodeDocuments(raw)
	return docs, nil
}

func (b *Backend) replaceLocal(ctx context.Context, p CollectionPath, docs []Document) error {
	enc, err := EncodeDocuments(docs)
	if err != nil {
		return err
	}
	return wrapLocal(b.local.SetItem(ctx, b.LocalKey(p), enc))
}

// mergeLocal upserts by id. With create=false a missing id is left alone.
func (b *Backend) mergeLocal(ctx context.Context, p CollectionPath, id string, fields Document, create bool) error {
	return wrapLocal(b.local.Update(ctx, b.LocalKey(p), func(cur string, _ bool) (string, error) {
		docs, _ := DecodeDocuments(cur)
		found := false
		for i, d := range docs {
			if d.ID() != id {
				continue
			}
			merged := d.Clone()
			for k, v := range fields {
				merged[k] = v
			}
			merged[FieldID] = d[FieldID]
			docs[i] = merged
			found = true
			break
		}
		if !found {
			if !create {
				return "", localstore.ErrSkipWrite
			}
			nd := fields.Clone()
			nd[FieldID] = id
			docs = append(docs, nd)
		}
		return EncodeDocuments(docs)
	}))
}

func (b *Backend) removeLocal(ctx context.Context, p CollectionPath, id string) error {
	return wrapLocal(b.local.Update(ctx, b.LocalKey(p), func(cur string, ok bool) (string, error) {
		if !ok {
			return "", localstore.ErrSkipWrite
		}
		docs, _ := DecodeDocuments(cur)
		out := docs[:0]
		for _, d := range docs {
			if d.ID() != id {
				out = append(out, d)
			}
		}
		if len(out) == len(docs) {
			return "", localstore.ErrSkipWrite
		}
		return EncodeDocuments(out)
	}))
}

func wrapLocal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, localstore.ErrQuotaExceeded) {
		return fmt.Errorf("%w: %v", ErrStorageFull, err)
	}
	return err
}

// ----------------------------------------------------------------------------
// storage info
// ----------------------------------------------------------------------------

type StorageInfo struct {
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Used       int64   `json:"used,omitempty"`
	Capacity   int64   `json:"capacity,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	Pending    int     `json:"pending"`
}

func (b *Backend) StorageInfo(ctx context.Context) (StorageInfo, error) {
	pending, err := b.PendingCount(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	if b.remote != nil {
		status := "connected"
		if !b.online.Load() {
			status = "offline"
		}
		return StorageInfo{Type: b.remote.Name(), Status: status, Pending: pending}, nil
	}

	all, err := localstore.Snapshot(ctx, b.local)
	if err != nil {
		return StorageInfo{}, wrapLocal(err)
	}
	var used int64
	for k, v := range all {
		used += int64(localstore.Length(k) + localstore.Length(v))
	}
	return StorageInfo{
		Type:       "local",
		Status:     "local only",
		Used:       used,
		Capacity:   b.capacity,
		Percentage: float64(used) / float64(b.capacity) * 100,
		Pending:    pending,
	}, nil
}
