// backend/internal/adapters/out/docstore/store.go
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"booknest/internal/application/persistence"
)

// Collection names.
const (
	ColBooks   = "books"
	ColOrders  = "orders"
	ColUsers   = "users"
	ColTickets = "tickets"
	ColCart    = "cart"
	ColPile    = "pile"
)

// Store is the subset of persistence.Backend the repositories need.
type Store interface {
	Save(ctx context.Context, collection string, doc persistence.Document, id string) (persistence.Result, error)
	Load(ctx context.Context, collection string) (persistence.LoadResult, error)
	Update(ctx context.Context, collection, id string, fields persistence.Document) (persistence.Result, error)
	Delete(ctx context.Context, collection, id string) (persistence.Result, error)
}

var _ Store = (*persistence.Backend)(nil)

// toDocument converts a typed entity into an untyped document.
func toDocument(v any) (persistence.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var d persistence.Document
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return d, nil
}

func fromDocument[T any](d persistence.Document) (T, error) {
	var out T
	b, err := json.Marshal(d)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("docstore: decode %s: %w", d.ID(), err)
	}
	return out, nil
}

// fromDocuments skips documents that do not fit T (a malformed record must not hide the rest).
func fromDocuments[T any](docs []persistence.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := fromDocument[T](d)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func load[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	res, err := s.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return fromDocuments[T](res.Documents), nil
}

func fieldsOf(m map[string]any) persistence.Document {
	d := make(persistence.Document, len(m))
	for k, v := range m {
		if k == persistence.FieldID {
			continue
		}
		d[k] = v
	}
	return d
}
