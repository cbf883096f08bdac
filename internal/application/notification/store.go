// internal/application/notification/store.go
package notification

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	"booknest/internal/infra/localstore"
)

// List names one of the two notification lists in the local store.
type List string

const (
	// AdminList is shared by every admin, newest first.
	AdminList List = "adminNotifications"
	// UserList holds every buyer's notifications in insertion order.
	UserList List = "user_notifications"
)

var ErrMissingUser = errors.New("notification: user id is required")

// Store keeps notification lists. Every mutation goes through the local
// store's atomic Update, so two writers appending at once both land.
type Store struct {
	local localstore.Store
	now   func() time.Time
}

func NewStore(local localstore.Store, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{local: local, now: now}
}

func (s *Store) stamp(rec notifdom.Record) notifdom.Record {
	if rec.ID.IsZero() {
		rec.ID = common.ID(uuid.NewString())
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = common.At(s.now())
	}
	rec.Read = false
	return rec
}

// Add inserts rec (prepended for admins, appended for users).
func (s *Store) Add(ctx context.Context, l List, rec notifdom.Record) (notifdom.Record, error) {
	rec, _, err := s.add(ctx, l, rec, false)
	return rec, err
}

// AddUnique inserts rec unless the list already holds a record for the same
// event (see Record.SameEvent). The check and the write happen in one atomic step.
func (s *Store) AddUnique(ctx context.Context, l List, rec notifdom.Record) (notifdom.Record, bool, error) {
	return s.add(ctx, l, rec, true)
}

func (s *Store) add(ctx context.Context, l List, rec notifdom.Record, unique bool) (notifdom.Record, bool, error) {
	if l == UserList && strings.TrimSpace(rec.UserID) == "" {
		return rec, false, ErrMissingUser
	}
	rec = s.stamp(rec)
	added := false
	err := s.local.Update(ctx, string(l), func(cur string, _ bool) (string, error) {
		added = false
		list := notifdom.DecodeList(cur)
		if unique {
			for _, n := range list {
				if n.SameEvent(rec) && (l == AdminList || n.UserID == rec.UserID) {
					return "", localstore.ErrSkipWrite
				}
			}
		}
		if l == AdminList {
			list = append([]notifdom.Record{rec}, list...)
		} else {
			list = append(list, rec)
		}
		added = true
		return notifdom.EncodeList(list)
	})
	if err != nil {
		return rec, false, err
	}
	return rec, added, nil
}

// Records returns the list as stored (admin) or the user's records newest first.
func (s *Store) Records(ctx context.Context, l List, uid string) ([]notifdom.Record, error) {
	raw, _, err := s.local.GetItem(ctx, string(l))
	if err != nil {
		return nil, err
	}
	return View(l, uid, notifdom.DecodeList(raw)), nil
}

// View applies the per-list presentation to a decoded list.
func View(l List, uid string, all []notifdom.Record) []notifdom.Record {
	if l == AdminList {
		return all
	}
	out := make([]notifdom.Record, 0, len(all))
	for _, n := range all {
		if n.UserID == uid {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At().After(out[j].At())
	})
	return out
}

func Unread(list []notifdom.Record) int {
	n := 0
	for _, r := range list {
		if !r.Read {
			n++
		}
	}
	return n
}

func (s *Store) UnreadCount(ctx context.Context, l List, uid string) (int, error) {
	list, err := s.Records(ctx, l, uid)
	if err != nil {
		return 0, err
	}
	return Unread(list), nil
}

// owned reports whether uid may touch rec in list l.
func owned(l List, uid string, rec notifdom.Record) bool {
	return l == AdminList || rec.UserID == uid
}

func (s *Store) mutate(ctx context.Context, l List, fn func([]notifdom.Record) ([]notifdom.Record, bool)) error {
	return s.local.Update(ctx, string(l), func(cur string, ok bool) (string, error) {
		if !ok {
			return "", localstore.ErrSkipWrite
		}
		next, changed := fn(notifdom.DecodeList(cur))
		if !changed {
			return "", localstore.ErrSkipWrite
		}
		return notifdom.EncodeList(next)
	})
}

func (s *Store) MarkRead(ctx context.Context, l List, uid, id string) error {
	found := false
	err := s.mutate(ctx, l, func(list []notifdom.Record) ([]notifdom.Record, bool) {
		found = false
		for i := range list {
			if list[i].ID.String() == id && owned(l, uid, list[i]) {
				found = true
				if list[i].Read {
					return list, false
				}
				list[i].Read = true
				return list, true
			}
		}
		return list, false
	})
	if err != nil {
		return err
	}
	if !found {
		return notifdom.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, l List, uid string) error {
	return s.mutate(ctx, l, func(list []notifdom.Record) ([]notifdom.Record, bool) {
		changed := false
		for i := range list {
			if owned(l, uid, list[i]) && !list[i].Read {
				list[i].Read = true
				changed = true
			}
		}
		return list, changed
	})
}

func (s *Store) Delete(ctx context.Context, l List, uid, id string) error {
	return s.mutate(ctx, l, func(list []notifdom.Record) ([]notifdom.Record, bool) {
		out := make([]notifdom.Record, 0, len(list))
		for _, n := range list {
			if n.ID.String() == id && owned(l, uid, n) {
				continue
			}
			out = append(out, n)
		}
		return out, len(out) != len(list)
	})
}

// Clear empties the admin list, or removes only uid's records from the user list.
func (s *Store) Clear(ctx context.Context, l List, uid string) error {
	return s.mutate(ctx, l, func(list []notifdom.Record) ([]notifdom.Record, bool) {
		out := make([]notifdom.Record, 0, len(list))
		for _, n := range list {
			if !owned(l, uid, n) {
				out = append(out, n)
			}
		}
		return out, len(out) != len(list)
	})
}
