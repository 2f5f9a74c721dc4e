// Package qdrant stores chunk vectors in a Qdrant collection over gRPC.
// Chunk ids are mapped to deterministic UUIDs; the original id travels in the
// payload. The embedding tag lives in a reserved point that search excludes.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
)

// Payload keys.
const (
	keyKind     = "pdfqa_kind"
	keyID       = "id"
	keyDocument = "document"
	keyMetadata = "metadata"
	keyTag      = "embedding_tag"
	keyDims     = "dimensions"

	kindChunk = "chunk"
	kindMeta  = "collection_meta"
)

// PointsAPI is the subset of the generated Points client the store uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of the generated Collections client the store uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of all Qdrant operations.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
}

var _ semantic.Store = (*Store)(nil)

// New creates a Store connected to Qdrant at the given gRPC address. A non-empty
// apiKey is sent as the api-key header on every call.
func New(addr, apiKey string) (*Store, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if apiKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(apiKey)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewWithClients builds a Store on caller-supplied clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI) *Store {
	return &Store{points: points, collections: collections}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// PointID maps a chunk id to the deterministic UUID used as the Qdrant point id.
func PointID(collection, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+id)).String()
}

func metaPointID(collection string) string {
	return PointID(collection, "\x00"+kindMeta)
}

func (s *Store) exists(ctx context.Context, name string) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection and its tag point if missing.
func (s *Store) EnsureCollection(ctx context.Context, c semantic.Collection) error {
	stored, err := s.Collection(ctx, c.Name)
	if err == nil {
		return stored.Compatible(c)
	}
	if err != semantic.ErrCollectionNotFound {
		return err
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("qdrant: create collection %s: invalid dimensions %d", c.Name, c.Dimensions)
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: c.Name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(c.Dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", c.Name, err)
	}

	// Cosine needs a non-zero vector; the point is filtered out of searches.
	unit := make([]float32, c.Dimensions)
	unit[0] = 1
	meta := point(metaPointID(c.Name), unit, map[string]*pb.Value{
		keyKind: toValue(kindMeta),
		keyTag:  toValue(c.EmbeddingTag),
		keyDims: toValue(c.Dimensions),
	})
	if err := s.upsertPoints(ctx, c.Name, []*pb.PointStruct{meta}); err != nil {
		return fmt.Errorf("qdrant: write collection tag: %w", err)
	}
	return nil
}

// Collection reads the tag point of name.
func (s *Store) Collection(ctx context.Context, name string) (*semantic.Collection, error) {
	ok, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, semantic.ErrCollectionNotFound
	}

	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: name,
		Ids:            []*pb.PointId{uuidID(metaPointID(name))},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: read collection tag %s: %w", name, err)
	}
	c := &semantic.Collection{Name: name}
	if res := resp.GetResult(); len(res) > 0 {
		p := res[0].GetPayload()
		c.EmbeddingTag = p[keyTag].GetStringValue()
		c.Dimensions = int(p[keyDims].GetIntegerValue())
	}
	return c, nil
}

// DeleteCollection deletes the collection if it exists.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	ok, err := s.exists(ctx, name)
	if err != nil || !ok {
		return err
	}
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		return fmt.Errorf("qdrant: delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert stores all records in a single waited request.
func (s *Store) Upsert(ctx context.Context, collection string, records []semantic.Record) error {
	if len(records) == 0 {
		return nil
	}
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return err
	}
	if err := semantic.CheckRecords(records, c.Dimensions); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = point(PointID(collection, r.ID), r.Embedding, map[string]*pb.Value{
			keyKind:     toValue(kindChunk),
			keyID:       toValue(r.ID),
			keyDocument: toValue(r.Document),
			keyMetadata: toValue(map[string]any(r.Metadata)),
		})
	}
	if err := s.upsertPoints(ctx, collection, points); err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(records), err)
	}
	return nil
}

func (s *Store) upsertPoints(ctx context.Context, collection string, points []*pb.PointStruct) error {
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

// Search performs k-NN similarity search, skipping the tag point.
func (s *Store) Search(ctx context.Context, collection string, embedding []float32, k int) ([]semantic.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         &pb.Filter{MustNot: []*pb.Condition{fieldMatch(keyKind, kindMeta)}},
	})
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	results := make([]semantic.SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		p := r.GetPayload()
		sr := semantic.SearchResult{
			ID:       p[keyID].GetStringValue(),
			Content:  p[keyDocument].GetStringValue(),
			Score:    r.GetScore(),
			Metadata: domain.Metadata{},
		}
		if md, ok := fromValue(p[keyMetadata]).(map[string]any); ok {
			sr.Metadata = md
		}
		results = append(results, sr)
	}
	return semantic.Rank(results, k), nil
}

func point(id string, vec []float32, payload map[string]*pb.Value) *pb.PointStruct {
	return &pb.PointStruct{
		Id: uuidID(id),
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: vec},
			},
		},
		Payload: payload,
	}
}

func uuidID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
