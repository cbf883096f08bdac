// internal/adapters/out/mongodb/document_store_mongo.go
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"booknest/internal/application/persistence"
)

// fieldOwner tags user-scoped documents with their owner.
const fieldOwner = "ownerId"

// DocumentStore implements persistence.RemoteStore on MongoDB.
// Every collection maps onto a Mongo collection of the same name; user-scoped
// documents carry ownerId and every query on them filters by it.
type DocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri, database string) (*DocumentStore, error) {
	u := strings.TrimSpace(uri)
	if u == "" {
		return nil, errors.New("mongodb: uri is empty")
	}
	dbName := strings.TrimSpace(database)
	if dbName == "" {
		dbName = "booknest"
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(u))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewDocumentStore(client, dbName), nil
}

func NewDocumentStore(client *mongo.Client, database string) *DocumentStore {
	return &DocumentStore{client: client, db: client.Database(database)}
}

func (s *DocumentStore) Name() string { return "mongo" }

func (s *DocumentStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *DocumentStore) filter(p persistence.CollectionPath, id string) bson.M {
	f := bson.M{}
	if id != "" {
		f["_id"] = id
	}
	if p.Scoped() {
		f[fieldOwner] = p.UserID
	}
	return f
}

func (s *DocumentStore) body(p persistence.CollectionPath, doc persistence.Document) bson.M {
	m := bson.M{}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		m[k] = v
	}
	if p.Scoped() {
		m[fieldOwner] = p.UserID
	}
	return m
}

func (s *DocumentStore) Add(ctx context.Context, p persistence.CollectionPath, doc persistence.Document) (string, error) {
	id := primitive.NewObjectID().Hex()
	m := s.body(p, doc)
	m["_id"] = id
	m[persistence.FieldID] = id
	if _, err := s.db.Collection(p.Collection).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("mongodb: insert %s: %w", p, err)
	}
	return id, nil
}

func (s *DocumentStore) Set(ctx context.Context, p persistence.CollectionPath, id string, doc persistence.Document) error {
	_, err := s.db.Collection(p.Collection).UpdateOne(ctx,
		s.filter(p, id),
		bson.M{"$set": s.body(p, doc)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb: upsert %s/%s: %w", p, id, err)
	}
	return nil
}

func (s *DocumentStore) Update(ctx context.Context, p persistence.CollectionPath, id string, fields persistence.Document) error {
	if len(fields) == 0 {
		return nil
	}
	res, err := s.db.Collection(p.Collection).UpdateOne(ctx,
		s.filter(p, id),
		bson.M{"$set": s.body(p, fields)},
	)
	if err != nil {
		return fmt.Errorf("mongodb: update %s/%s: %w", p, id, err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrRemoteNotFound
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, p persistence.CollectionPath, id string) error {
	res, err := s.db.Collection(p.Collection).DeleteOne(ctx, s.filter(p, id))
	if err != nil {
		return fmt.Errorf("mongodb: delete %s/%s: %w", p, id, err)
	}
	if res.DeletedCount == 0 {
		return persistence.ErrRemoteNotFound
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, p persistence.CollectionPath) ([]persistence.Document, error) {
	cur, err := s.db.Collection(p.Collection).Find(ctx, s.filter(p, ""), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb: find %s: %w", p, err)
	}
	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb: decode %s: %w", p, err)
	}

	out := make([]persistence.Document, 0, len(rows))
	for _, row := range rows {
		d := persistence.Document{}
		for k, v := range row {
			if k == "_id" || k == fieldOwner {
				continue
			}
			d[k] = fromBSON(v)
		}
		d[persistence.FieldID] = persistence.IDString(fromBSON(row["_id"]))
		out = append(out, d)
	}
	return out, nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return persistence.Timestamp(t.Time())
	case primitive.ObjectID:
		return t.Hex()
	case bson.M:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = fromBSON(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromBSON(t[i])
		}
		return out
	case int32:
		return int64(t)
	default:
		return v
	}
}
