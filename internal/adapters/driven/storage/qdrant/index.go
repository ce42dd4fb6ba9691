// Package qdrant implements driven.VectorIndex on a Qdrant collection over
// the gRPC API.
//
// Each chunk is one point. The point ID is the chunk ID, which must be a
// UUID. The payload carries the chunk text, its position, the owning
// document and version, and the document's structured fields as JSON.
// A keyword index on document_id keeps per-document filters and deletes
// cheap.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
)

// Payload keys.
const (
	keyDocumentID = "document_id"
	keyVersion    = "version"
	keyText       = "text"
	keySequence   = "sequence"
	keyFields     = "fields"
)

// scrollPage is the page size used when walking the collection.
const scrollPage = 256

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Config configures the Qdrant index.
type Config struct {
	// Addr is the gRPC host:port, e.g. localhost:6334.
	Addr string

	// Collection is created on first use when missing.
	Collection string

	// Dimensions is the vector size of the collection.
	Dimensions int
}

// Index is a Qdrant-backed vector index.
type Index struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// New dials Qdrant and ensures the collection exists.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Addr == "" || cfg.Collection == "" || cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: qdrant needs an address, a collection and dimensions", domain.ErrConfiguration)
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dialing qdrant at %s: %v", domain.ErrStoreUnavailable, cfg.Addr, err)
	}

	idx := NewWithClients(pb.NewCollectionsClient(conn), pb.NewPointsClient(conn), cfg.Collection)
	idx.conn = conn
	if err := idx.ensureCollection(ctx, cfg.Dimensions); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithClients builds an index over existing gRPC clients. The collection
// must already exist.
func NewWithClients(collections pb.CollectionsClient, points pb.PointsClient, collection string) *Index {
	return &Index{
		collections: collections,
		points:      points,
		collection:  collection,
	}
}

func (i *Index) ensureCollection(ctx context.Context, dims int) error {
	resp, err := i.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return classify("listing collections", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == i.collection {
			return nil
		}
	}

	_, err = i.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return classify("creating collection", err)
	}

	_, err = i.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: i.collection,
		Wait:           boolPtr(true),
		FieldName:      keyDocumentID,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return classify("indexing document_id", err)
	}
	return nil
}

// UpsertChunks writes chunks as points, replacing any with the same ID.
func (i *Index) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		p, err := toPoint(c)
		if err != nil {
			return err
		}
		points = append(points, p)
	}

	_, err := i.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: i.collection,
		Wait:           boolPtr(true),
		Points:         points,
	})
	return classify("upserting points", err)
}

// DeleteByDocumentID removes every point of a document.
func (i *Index) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := i.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: i.collection,
		Wait:           boolPtr(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: documentFilter([]string{documentID}),
			},
		},
	})
	return classify("deleting points", err)
}

// Search returns up to k points by cosine similarity.
func (i *Index) Search(ctx context.Context, query []float32, k int, filter *driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 || (filter != nil && len(filter.DocumentIDs) == 0) {
		return nil, nil
	}
	req := &pb.SearchPoints{
		CollectionName: i.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if filter != nil {
		req.Filter = documentFilter(filter.DocumentIDs)
	}

	resp, err := i.points.Search(ctx, req)
	if err != nil {
		return nil, classify("searching points", err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		c, err := fromPayload(p.GetId(), p.GetPayload())
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{Chunk: c, Score: float64(p.GetScore())})
	}
	return hits, nil
}

// ListChunks returns a document's chunks ordered by sequence. Vectors are
// not fetched.
func (i *Index) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0)
	err := i.scroll(ctx, documentFilter([]string{documentID}), true, func(p *pb.RetrievedPoint) error {
		c, err := fromPayload(p.GetId(), p.GetPayload())
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Sequence != out[b].Sequence {
			return out[a].Sequence < out[b].Sequence
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// DocumentIDs walks the collection and returns the distinct document IDs.
func (i *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	err := i.scroll(ctx, nil, false, func(p *pb.RetrievedPoint) error {
		if v, ok := p.GetPayload()[keyDocumentID]; ok {
			seen[v.GetStringValue()] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the exact number of points.
func (i *Index) Count(ctx context.Context) (int, error) {
	resp, err := i.points.Count(ctx, &pb.CountPoints{
		CollectionName: i.collection,
		Exact:          boolPtr(true),
	})
	if err != nil {
		return 0, classify("counting points", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close closes the gRPC connection when the index owns it.
func (i *Index) Close() error {
	if i.conn == nil {
		return nil
	}
	return i.conn.Close()
}

func (i *Index) scroll(ctx context.Context, filter *pb.Filter, fullPayload bool, fn func(*pb.RetrievedPoint) error) error {
	selector := &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
	if !fullPayload {
		selector = &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keyDocumentID}},
			},
		}
	}
	limit := uint32(scrollPage)

	var offset *pb.PointId
	for {
		resp, err := i.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: i.collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    selector,
		})
		if err != nil {
			return classify("scrolling points", err)
		}
		for _, p := range resp.GetResult() {
			if err := fn(p); err != nil {
				return err
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return nil
		}
	}
}

func documentFilter(ids []string) *pb.Filter {
	match := &pb.Match{MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: ids}}}
	if len(ids) == 1 {
		match = &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: ids[0]}}
	}
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: keyDocumentID, Match: match},
			},
		}},
	}
}

func toPoint(c domain.Chunk) (*pb.PointStruct, error) {
	fields := "{}"
	if len(c.Fields) > 0 {
		b, err := json.Marshal(c.Fields)
		if err != nil {
			return nil, fmt.Errorf("marshalling fields: %w", err)
		}
		fields = string(b)
	}
	return &pb.PointStruct{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID}},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Vector}},
		},
		Payload: map[string]*pb.Value{
			keyDocumentID: stringValue(c.DocumentID),
			keyVersion:    intValue(c.Version),
			keyText:       stringValue(c.Text),
			keySequence:   intValue(c.Sequence),
			keyFields:     stringValue(fields),
		},
	}, nil
}

func fromPayload(id *pb.PointId, payload map[string]*pb.Value) (domain.Chunk, error) {
	c := domain.Chunk{
		ID:         id.GetUuid(),
		DocumentID: payload[keyDocumentID].GetStringValue(),
		Version:    int(payload[keyVersion].GetIntegerValue()),
		Text:       payload[keyText].GetStringValue(),
		Sequence:   int(payload[keySequence].GetIntegerValue()),
	}
	if raw := payload[keyFields].GetStringValue(); raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return c, fmt.Errorf("unmarshaling fields of point %s: %w", c.ID, err)
		}
		fields, err := domain.Fields(m).Normalise(nil)
		if err != nil {
			return c, fmt.Errorf("decoding fields of point %s: %w", c.ID, err)
		}
		c.Fields = fields
	}
	return c, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

func boolPtr(b bool) *bool {
	return &b
}

// classify maps transient gRPC codes onto ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}
	return fmt.Errorf("%s: %w", op, err)
}
