// Package legacy reads and writes the historical document collections
// (bookings, appointments) that predate the relational schema.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	CollectionBookings     = "bookings"
	CollectionAppointments = "appointments"
)

// Collections lists every legacy collection holding appointment data.
var Collections = []string{CollectionBookings, CollectionAppointments}

var ErrNotFound = errors.New("legacy document not found")

// Document is one legacy record. Fields holds the raw document with
// driver types converted to plain Go values (time.Time, string ids,
// map[string]any, []any).
type Document struct {
	ID         string
	Collection string
	Fields     map[string]any
}

// Store is the legacy document store.
type Store interface {
	// FindByFields returns documents in collection where any of keys equals value.
	FindByFields(ctx context.Context, collection string, keys []string, value string) ([]Document, error)
	FindAll(ctx context.Context, collection string) ([]Document, error)
	// SetFields sets fields on the document with the given id.
	SetFields(ctx context.Context, collection, id string, fields map[string]any) error
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// MongoStore implements Store on a mongo database.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

func (s *MongoStore) FindByFields(ctx context.Context, collection string, keys []string, value string) ([]Document, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	or := make(bson.A, 0, len(keys))
	for _, k := range keys {
		or = append(or, bson.M{k: value})
	}
	return s.find(ctx, collection, bson.M{"$or": or})
}

func (s *MongoStore) FindAll(ctx context.Context, collection string) ([]Document, error) {
	return s.find(ctx, collection, bson.M{})
}

func (s *MongoStore) find(ctx context.Context, collection string, filter bson.M) ([]Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		fields := normalizeMap(m)
		id, _ := fields["_id"].(string)
		delete(fields, "_id")
		docs = append(docs, Document{ID: id, Collection: collection, Fields: fields})
	}
	return docs, nil
}

func (s *MongoStore) SetFields(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{"updatedAt": s.now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// idFilter matches _id stored either as an ObjectID or as a string.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$or": bson.A{bson.M{"_id": oid}, bson.M{"_id": id}}}
	}
	return bson.M{"_id": id}
}

// FindAcross queries every collection concurrently and concatenates the
// results in collection order.
func FindAcross(ctx context.Context, s Store, collections, keys []string, value string) ([]Document, error) {
	results := make([][]Document, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, coll := range collections {
		g.Go(func() error {
			docs, err := s.FindByFields(gctx, coll, keys, value)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Document
	for _, docs := range results {
		all = append(all, docs...)
	}
	return all, nil
}

// MirrorFields writes fields to the document with id in every collection.
// Each write is independent; all failures are returned joined, and a
// collection that simply lacks the document is not a failure.
func MirrorFields(ctx context.Context, s Store, collections []string, id string, fields map[string]any) error {
	var errs []error
	for _, coll := range collections {
		if err := s.SetFields(ctx, coll, id, fields); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case bson.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
