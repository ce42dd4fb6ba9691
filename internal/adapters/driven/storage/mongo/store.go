// Package mongo implements driven.MetadataStore on a MongoDB collection.
//
// Documents are stored with the document ID as _id and structured fields
// under a nested "fields" object, so filters translate to dotted paths.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// collectionName holds one record per document.
const collectionName = "documents"

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Config configures the Mongo store.
type Config struct {
	URI      string
	Database string
}

// Store is a MongoDB-backed metadata store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type record struct {
	ID         string    `bson:"_id"`
	Version    int       `bson:"version"`
	Fields     bson.M    `bson:"fields"`
	Text       string    `bson:"text"`
	Source     string    `bson:"source"`
	ChunkCount int       `bson:"chunk_count"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// New connects to MongoDB and verifies the server is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: mongo needs a URI and a database", domain.ErrConfiguration)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to mongo: %v", domain.ErrConfiguration, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, classify("pinging mongo", err)
	}
	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(collectionName),
	}, nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Document, error) {
	var rec record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify("reading document", err)
	}
	return rec.toDocument()
}

// GetMany retrieves the documents that exist among ids.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, classify("reading documents", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var rec record
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		doc, err := rec.toDocument()
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := cur.Err(); err != nil {
		return nil, classify("iterating documents", err)
	}
	return out, nil
}

// Put writes a document if the stored version equals expectedVersion.
// Creation relies on the _id unique index; updates match on version.
func (s *Store) Put(ctx context.Context, doc *domain.Document, expectedVersion int) error {
	rec := fromDocument(doc)

	if expectedVersion == 0 {
		_, err := s.coll.InsertOne(ctx, rec)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s already exists", domain.ErrVersionConflict, doc.ID)
		}
		return classify("inserting document", err)
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": expectedVersion}, rec)
	if err != nil {
		return classify("replacing document", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s is not at version %d", domain.ErrVersionConflict, doc.ID, expectedVersion)
	}
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify("deleting document", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Find returns the sorted IDs of documents matching the filter. The query
// narrows candidates server-side; Filter.Matches has the final say.
func (s *Store) Find(ctx context.Context, filter domain.Filter) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "fields": 1})

	cur, err := s.coll.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, classify("finding documents", err)
	}
	defer cur.Close(ctx)

	ids := make([]string, 0)
	for cur.Next(ctx) {
		var rec record
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		fields, err := decodeFields(rec.Fields)
		if err != nil {
			return nil, err
		}
		if filter.Matches(rec.ID, fields) {
			ids = append(ids, rec.ID)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, classify("iterating documents", err)
	}
	return ids, nil
}

// Count returns the number of documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, classify("counting documents", err)
	}
	return int(n), nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// buildQuery translates a normalised filter into a Mongo query document.
func buildQuery(filter domain.Filter) bson.M {
	conds := make(bson.A, 0, len(filter))
	for _, p := range filter {
		if c := condition(p); c != nil {
			conds = append(conds, c)
		}
	}
	if len(conds) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": conds}
}

func condition(p domain.Predicate) bson.M {
	if p.Field == domain.FieldDocumentID {
		switch v := p.Value.(type) {
		case string:
			return bson.M{"_id": v}
		case []string:
			return bson.M{"_id": bson.M{"$in": v}}
		}
		return nil
	}

	path := "fields." + p.Field
	switch v := p.Value.(type) {
	case float64:
		switch p.Op {
		case domain.OpEq:
			return bson.M{path: bson.M{"$eq": v}}
		case domain.OpGte:
			return bson.M{path: bson.M{"$gte": v}}
		case domain.OpLte:
			return bson.M{path: bson.M{"$lte": v}}
		}
	case [2]float64:
		return bson.M{path: bson.M{"$gte": v[0], "$lte": v[1]}}
	case string:
		quoted := regexp.QuoteMeta(v)
		switch p.Op {
		case domain.OpEq:
			return bson.M{path: primitive.Regex{Pattern: "^" + quoted + "$", Options: "i"}}
		case domain.OpContains:
			// A string field matches as substring, a set field as member.
			return bson.M{"$or": bson.A{
				bson.M{path: primitive.Regex{Pattern: quoted, Options: "i"}},
				bson.M{path: bson.M{"$elemMatch": bson.M{"$eq": v}}},
			}}
		}
	case []string:
		switch p.Op {
		case domain.OpIn:
			res := make(bson.A, len(v))
			for i, s := range v {
				res[i] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
			}
			return bson.M{path: bson.M{"$in": res}}
		case domain.OpAny:
			return bson.M{path: bson.M{"$elemMatch": bson.M{"$in": v}}}
		case domain.OpAll:
			return bson.M{path: bson.M{"$all": v}}
		}
	}
	return nil
}

func fromDocument(doc *domain.Document) record {
	fields := bson.M{}
	for k, v := range doc.Fields {
		fields[k] = v
	}
	created, updated := doc.CreatedAt, doc.UpdatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if updated.IsZero() {
		updated = created
	}
	return record{
		ID:         doc.ID,
		Version:    doc.Version,
		Fields:     fields,
		Text:       doc.Text,
		Source:     doc.Source,
		ChunkCount: doc.ChunkCount,
		CreatedAt:  created.UTC(),
		UpdatedAt:  updated.UTC(),
	}
}

func (r record) toDocument() (*domain.Document, error) {
	fields, err := decodeFields(r.Fields)
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		ID:         r.ID,
		Version:    r.Version,
		Fields:     fields,
		Text:       r.Text,
		Source:     r.Source,
		ChunkCount: r.ChunkCount,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

// decodeFields converts BSON values back into canonical field values.
func decodeFields(m bson.M) (domain.Fields, error) {
	raw := make(domain.Fields, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case primitive.A:
			raw[k] = []any(t)
		case int32:
			raw[k] = float64(t)
		case int64:
			raw[k] = float64(t)
		default:
			raw[k] = t
		}
	}
	fields, err := raw.Normalise(nil)
	if err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	return fields, nil
}

// classify maps network failures and timeouts onto ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
