// internal/application/persistence/ports.go
package persistence

import (
	"context"
	"errors"
)

// ErrRemoteNotFound is returned by RemoteStore implementations when the target doc is absent.
var ErrRemoteNotFound = errors.New("persistence: remote document not found")

// CollectionPath addresses one collection in the remote store.
// UserID is empty for global collections; user-scoped collections live under
// users/{UserID}/{Collection}.
type CollectionPath struct {
	Collection string
	UserID     string
}

func (p CollectionPath) Scoped() bool {
	return p.UserID != ""
}

func (p CollectionPath) String() string {
	if p.Scoped() {
		return "users/" + p.UserID + "/" + p.Collection
	}
	return p.Collection
}

// RemoteStore is the cloud document store port.
//
// Set merges fields into the document (creating it when absent).
// Update fails with ErrRemoteNotFound when the document does not exist.
type RemoteStore interface {
	Name() string
	Add(ctx context.Context, p CollectionPath, doc Document) (string, error)
	Set(ctx context.Context, p CollectionPath, id string, doc Document) error
	Update(ctx context.Context, p CollectionPath, id string, fields Document) error
	Delete(ctx context.Context, p CollectionPath, id string) error
	List(ctx context.Context, p CollectionPath) ([]Document, error)
	Ping(ctx context.Context) error
}
