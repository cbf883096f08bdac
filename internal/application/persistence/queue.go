// internal/application/persistence/queue.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"booknest/internal/infra/localstore"
)

// KeyPendingSync holds the offline write queue.
const KeyPendingSync = "pendingSync"

type OpKind string

const (
	OpSave   OpKind = "save"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// PendingOp is one write made while the remote was unreachable.
type PendingOp struct {
	Op         OpKind   `json:"op"`
	Collection string   `json:"collection"`
	UserID     string   `json:"userId,omitempty"`
	ID         string   `json:"id"`
	Document   Document `json:"data,omitempty"`
	Attempts   int      `json:"attempts"`
	QueuedAt   string   `json:"queuedAt"`
}

func (op PendingOp) path() CollectionPath {
	return CollectionPath{Collection: op.Collection, UserID: op.UserID}
}

func (op PendingOp) docKey() string {
	return op.path().String() + "#" + op.ID
}

type FlushMode string

const (
	// FlushRequeue keeps a failed item in the queue, in order, until MaxAttempts.
	FlushRequeue FlushMode = "requeue"
	// FlushDrop discards a failed item after one attempt.
	FlushDrop FlushMode = "drop"
)

const DefaultMaxAttempts = 5

type FlushPolicy struct {
	Mode        FlushMode
	MaxAttempts int
}

func (p FlushPolicy) withDefaults() FlushPolicy {
	switch FlushMode(strings.ToLower(strings.TrimSpace(string(p.Mode)))) {
	case FlushDrop:
		p.Mode = FlushDrop
	default:
		p.Mode = FlushRequeue
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

type FlushReport struct {
	Flushed  int `json:"flushed"`
	Requeued int `json:"requeued"`
	Dropped  int `json:"dropped"`
}

func decodeQueue(raw string) []PendingOp {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ops []PendingOp
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil
	}
	return ops
}

func encodeQueue(ops []PendingOp) (string, error) {
	if ops == nil {
		ops = []PendingOp{}
	}
	b, err := json.Marshal(ops)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (b *Backend) enqueue(ctx context.Context, op PendingOp) error {
	op.QueuedAt = Timestamp(b.now())
	return wrapLocal(b.local.Update(ctx, KeyPendingSync, func(cur string, _ bool) (string, error) {
		return encodeQueue(append(decodeQueue(cur), op))
	}))
}

// Pending returns the queued operations in FIFO order.
func (b *Backend) Pending(ctx context.Context) ([]PendingOp, error) {
	raw, _, err := b.local.GetItem(ctx, KeyPendingSync)
	if err != nil {
		return nil, wrapLocal(err)
	}
	return decodeQueue(raw), nil
}

func (b *Backend) PendingCount(ctx context.Context) (int, error) {
	ops, err := b.Pending(ctx)
	return len(ops), err
}

// SetOnline records reachability. Going from offline to online flushes the queue.
func (b *Backend) SetOnline(ctx context.Context, online bool) error {
	if b.remote == nil {
		return nil
	}
	prev := b.online.Swap(online)
	if prev == online {
		return nil
	}
	if !online {
		b.log.Warn("remote unreachable, writes will be queued")
		return nil
	}
	b.log.Info("remote reachable again, flushing pending writes")
	_, err := b.Flush(ctx)
	return err
}

// Flush replays queued writes against the remote in FIFO order.
// Items that fail follow the FlushPolicy; writes queued during the flush are kept after them.
func (b *Backend) Flush(ctx context.Context) (FlushReport, error) {
	var rep FlushReport
	if b.remote == nil {
		return rep, nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	var taken []PendingOp
	err := b.local.Update(ctx, KeyPendingSync, func(cur string, ok bool) (string, error) {
		taken = decodeQueue(cur)
		if len(taken) == 0 {
			return "", localstore.ErrSkipWrite
		}
		return "[]", nil
	})
	if err != nil {
		return rep, wrapLocal(err)
	}
	if len(taken) == 0 {
		return rep, nil
	}

	var retry []PendingOp
	// documents with a requeued op; their later ops wait behind it
	blocked := map[string]struct{}{}
	for _, op := range taken {
		if err := ctx.Err(); err != nil {
			retry = append(retry, op)
			continue
		}
		if _, ok := blocked[op.docKey()]; ok {
			retry = append(retry, op)
			rep.Requeued++
			continue
		}
		if err := b.replay(ctx, op); err != nil {
			op.Attempts++
			if b.policy.Mode == FlushRequeue && op.Attempts < b.policy.MaxAttempts {
				retry = append(retry, op)
				blocked[op.docKey()] = struct{}{}
				rep.Requeued++
				b.log.Warn("flush failed, requeued",
					zap.String("op", string(op.Op)), zap.String("collection", op.Collection),
					zap.String("id", op.ID), zap.Int("attempts", op.Attempts), zap.Error(err))
				continue
			}
			rep.Dropped++
			b.log.Warn("flush failed, dropped",
				zap.String("op", string(op.Op)), zap.String("collection", op.Collection),
				zap.String("id", op.ID), zap.Int("attempts", op.Attempts), zap.Error(err))
			continue
		}
		rep.Flushed++
	}

	if len(retry) > 0 {
		err := b.local.Update(ctx, KeyPendingSync, func(cur string, _ bool) (string, error) {
			return encodeQueue(append(retry, decodeQueue(cur)...))
		})
		if err != nil {
			return rep, wrapLocal(err)
		}
	}

	b.log.Info("flush finished",
		zap.Int("flushed", rep.Flushed), zap.Int("requeued", rep.Requeued), zap.Int("dropped", rep.Dropped))
	return rep, nil
}

func (b *Backend) replay(ctx context.Context, op PendingOp) error {
	p := op.path()
	switch op.Op {
	case OpSave, "":
		body := Normalize(op.Document)
		if body == nil {
			body = Document{}
		}
		body[FieldID] = op.ID
		return b.remote.Set(ctx, p, op.ID, body)
	case OpUpdate:
		return b.remote.Update(ctx, p, op.ID, Normalize(op.Document))
	case OpDelete:
		err := b.remote.Delete(ctx, p, op.ID)
		if errors.Is(err, ErrRemoteNotFound) {
			return nil
		}
		return err
	default:
		b.log.Warn("unknown queued op skipped", zap.String("op", string(op.Op)))
		return nil
	}
}

// overlayPending applies still-queued writes for p on top of a remote listing,
// so a reconnect that could not flush everything does not hide local edits.
func (b *Backend) overlayPending(ctx context.Context, p CollectionPath, docs []Document) ([]Document, error) {
	ops, err := b.Pending(ctx)
	if err != nil || len(ops) == 0 {
		return docs, err
	}
	for _, op := range ops {
		if op.Collection != p.Collection || op.UserID != p.UserID {
			continue
		}
		idx := -1
		for i, d := range docs {
			if d.ID() == op.ID {
				idx = i
				break
			}
		}
		switch op.Op {
		case OpDelete:
			if idx >= 0 {
				docs = append(docs[:idx], docs[idx+1:]...)
			}
		case OpUpdate:
			if idx >= 0 {
				merged := docs[idx].Clone()
				for k, v := range op.Document {
					merged[k] = v
				}
				docs[idx] = merged
			}
		default:
			if idx >= 0 {
				merged := docs[idx].Clone()
				for k, v := range op.Document {
					merged[k] = v
				}
				docs[idx] = merged
			} else {
				nd := op.Document.Clone()
				nd[FieldID] = op.ID
				docs = append(docs, nd)
			}
		}
	}
	return docs, nil
}
