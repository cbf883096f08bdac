// internal/application/quota/sweep.go
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"booknest/internal/application/persistence"
	cartdom "booknest/internal/domain/cart"
	"booknest/internal/infra/localstore"
)

// RetentionWindow is how old a terminal record must be before the sweep removes it.
const RetentionWindow = 30 * 24 * time.Hour

// rule decides, per collection, whether a document survives the sweep.
type rule struct {
	dateFields []string
	protected  func(persistence.Document) bool
}

var rules = map[string]rule{
	"orders": {
		dateFields: []string{"orderDate", "date"},
		protected: func(d persistence.Document) bool {
			s := d.String("status")
			return s == "pending" || s == "confirmed"
		},
	},
	"pile": {
		dateFields: []string{"addedAt"},
		protected:  func(d persistence.Document) bool { return d.String("status") == "pending" },
	},
	"tickets": {
		dateFields: []string{"timestamp"},
		protected:  func(d persistence.Document) bool { return d.String("status") == "open" },
	},
}

// SweepReport counts removed documents per local key.
type SweepReport struct {
	Removed map[string]int `json:"removed"`
}

func (r SweepReport) Total() int {
	n := 0
	for _, c := range r.Removed {
		n += c
	}
	return n
}

// Sweep removes expired records and untagged cart snapshots from every matching
// key, scoped keys ("pile@uid") included. Running it again on a clean store
// removes nothing.
func Sweep(ctx context.Context, local localstore.Store, now time.Time) (SweepReport, error) {
	rep := SweepReport{Removed: map[string]int{}}
	keys, err := local.Keys(ctx)
	if err != nil {
		return rep, fmt.Errorf("quota: list keys: %w", err)
	}
	sort.Strings(keys)

	for _, key := range keys {
		col := key
		if c, _, ok := persistence.SplitScopedKey(key); ok {
			col = c
		}

		var keep func(persistence.Document) bool
		if col == "cart" {
			keep = func(d persistence.Document) bool { return d.ID() == cartdom.CurrentID }
		} else if r, ok := rules[col]; ok {
			keep = func(d persistence.Document) bool {
				if r.protected(d) {
					return true
				}
				at, ok := dateOf(d, r.dateFields)
				return ok && now.Sub(at) < RetentionWindow
			}
		} else {
			continue
		}

		n, err := filterKey(ctx, local, key, keep)
		if err != nil {
			return rep, fmt.Errorf("quota: sweep %s: %w", key, err)
		}
		if n > 0 {
			rep.Removed[key] = n
		}
	}
	return rep, nil
}

func dateOf(d persistence.Document, fields []string) (time.Time, bool) {
	for _, f := range fields {
		if t, ok := persistence.ParseTime(d[f]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// filterKey rewrites key keeping only documents for which keep is true.
// Malformed values are left alone.
func filterKey(ctx context.Context, local localstore.Store, key string, keep func(persistence.Document) bool) (int, error) {
	removed := 0
	err := local.Update(ctx, key, func(cur string, exists bool) (string, error) {
		removed = 0
		if !exists {
			return "", localstore.ErrSkipWrite
		}
		docs, ok := persistence.DecodeDocuments(cur)
		if !ok {
			return "", localstore.ErrSkipWrite
		}
		out := make([]persistence.Document, 0, len(docs))
		for _, d := range docs {
			if keep(d) {
				out = append(out, d)
			}
		}
		removed = len(docs) - len(out)
		if removed == 0 {
			return "", localstore.ErrSkipWrite
		}
		return persistence.EncodeDocuments(out)
	})
	return removed, err
}

// CartRepair describes what RepairCart did to one key.
type CartRepair string

const (
	CartClean     CartRepair = "clean"
	CartTrimmed   CartRepair = "trimmed"
	CartRecovered CartRepair = "recovered"
	CartCleared   CartRepair = "cleared"
)

// RepairCart fixes every cart key: keep the canonical "current" documents,
// otherwise rebuild one from the last snapshot's items, otherwise drop the key.
func RepairCart(ctx context.Context, local localstore.Store, now time.Time) (map[string]CartRepair, error) {
	keys, err := local.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota: list keys: %w", err)
	}
	out := map[string]CartRepair{}
	for _, key := range keys {
		col := key
		if c, _, ok := persistence.SplitScopedKey(key); ok {
			col = c
		}
		if col != "cart" {
			continue
		}
		res, err := repairCartKey(ctx, local, key, now)
		if err != nil {
			return out, fmt.Errorf("quota: repair %s: %w", key, err)
		}
		out[key] = res
	}
	return out, nil
}

func repairCartKey(ctx context.Context, local localstore.Store, key string, now time.Time) (CartRepair, error) {
	res := CartClean
	drop := false
	err := local.Update(ctx, key, func(cur string, exists bool) (string, error) {
		res, drop = CartClean, false
		if !exists {
			return "", localstore.ErrSkipWrite
		}
		docs, ok := persistence.DecodeDocuments(cur)
		if !ok || len(docs) == 0 {
			return "", localstore.ErrSkipWrite
		}

		current := make([]persistence.Document, 0, 1)
		for _, d := range docs {
			if d.ID() == cartdom.CurrentID {
				current = append(current, d)
			}
		}
		if len(current) > 0 {
			if len(current) == len(docs) {
				return "", localstore.ErrSkipWrite
			}
			res = CartTrimmed
			return persistence.EncodeDocuments(current)
		}

		last := docs[len(docs)-1]
		items, ok := last["items"]
		if !ok || items == nil {
			res, drop = CartCleared, true
			return "", localstore.ErrSkipWrite
		}
		var typed []cartdom.CartItem
		if b, err := json.Marshal(items); err == nil {
			_ = json.Unmarshal(b, &typed)
		}
		res = CartRecovered
		recovered := cartdom.NewCart(typed, now)
		return encodeCart(recovered)
	})
	if err != nil {
		return res, err
	}
	if drop {
		if err := local.RemoveItem(ctx, key); err != nil {
			return res, err
		}
	}
	return res, nil
}

func encodeCart(c *cartdom.Cart) (string, error) {
	b, err := json.Marshal([]*cartdom.Cart{c})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
