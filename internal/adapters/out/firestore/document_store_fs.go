// backend/internal/adapters/out/firestore/document_store_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"booknest/internal/application/persistence"
)

// DocumentStoreFS implements persistence.RemoteStore using Firestore.
//
// Layout:
// - global collections: /{collection}/{id}
// - user-scoped:        /users/{uid}/{collection}/{id}
// docId is the source of truth for "id" (a stored id field is overwritten on read).
type DocumentStoreFS struct {
	Client *firestore.Client
}

func NewDocumentStoreFS(client *firestore.Client) *DocumentStoreFS {
	return &DocumentStoreFS{Client: client}
}

func (r *DocumentStoreFS) Name() string { return "firestore" }

func (r *DocumentStoreFS) col(p persistence.CollectionPath) (*firestore.CollectionRef, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("document_store_fs: firestore client is nil")
	}
	c := strings.TrimSpace(p.Collection)
	if c == "" {
		return nil, errors.New("document_store_fs: collection is empty")
	}
	if uid := strings.TrimSpace(p.UserID); uid != "" {
		return r.Client.Collection("users").Doc(uid).Collection(c), nil
	}
	return r.Client.Collection(c), nil
}

func (r *DocumentStoreFS) Add(ctx context.Context, p persistence.CollectionPath, doc persistence.Document) (string, error) {
	col, err := r.col(p)
	if err != nil {
		return "", err
	}
	ref, _, err := col.Add(ctx, map[string]any(doc))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Set merges doc into /.../{id}, creating it when missing.
func (r *DocumentStoreFS) Set(ctx context.Context, p persistence.CollectionPath, id string, doc persistence.Document) error {
	col, err := r.col(p)
	if err != nil {
		return err
	}
	did := strings.TrimSpace(id)
	if did == "" {
		return errors.New("document_store_fs: id is empty")
	}
	_, err = col.Doc(did).Set(ctx, map[string]any(doc), firestore.MergeAll)
	return err
}

func (r *DocumentStoreFS) Update(ctx context.Context, p persistence.CollectionPath, id string, fields persistence.Document) error {
	col, err := r.col(p)
	if err != nil {
		return err
	}
	did := strings.TrimSpace(id)
	if did == "" {
		return errors.New("document_store_fs: id is empty")
	}
	if len(fields) == 0 {
		return nil
	}

	ups := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		// FieldPath so that keys containing "." are not split
		ups = append(ups, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	_, err = col.Doc(did).Update(ctx, ups)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return persistence.ErrRemoteNotFound
		}
		return err
	}
	return nil
}

func (r *DocumentStoreFS) Delete(ctx context.Context, p persistence.CollectionPath, id string) error {
	col, err := r.col(p)
	if err != nil {
		return err
	}
	did := strings.TrimSpace(id)
	if did == "" {
		return errors.New("document_store_fs: id is empty")
	}
	_, err = col.Doc(did).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return persistence.ErrRemoteNotFound
	}
	return err
}

func (r *DocumentStoreFS) List(ctx context.Context, p persistence.CollectionPath) ([]persistence.Document, error) {
	col, err := r.col(p)
	if err != nil {
		return nil, err
	}
	snaps, err := col.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]persistence.Document, 0, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		d := fromFirestore(snap.Data())
		d[persistence.FieldID] = snap.Ref.ID
		out = append(out, d)
	}
	return out, nil
}

// Ping は Firestore 接続をテストします（軽量な読み取りで代用）。
func (r *DocumentStoreFS) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("document_store_fs: firestore client is nil")
	}
	if _, err := r.Client.Collection("books").Limit(1).Documents(ctx).GetAll(); err != nil {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}
