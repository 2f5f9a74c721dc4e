package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
)

// fakeQdrant keeps points in memory and implements both client subsets.
type fakeQdrant struct {
	collections map[string]map[string]*pb.PointStruct
	upsertErr   error
	lastSearch  *pb.SearchPoints
	searchResp  []*pb.ScoredPoint
}

func newFake() *fakeQdrant {
	return &fakeQdrant{collections: map[string]map[string]*pb.PointStruct{}}
}

func (f *fakeQdrant) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for name := range f.collections {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeQdrant) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.collections[in.GetCollectionName()] = map[string]*pb.PointStruct{}
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeQdrant) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	delete(f.collections, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeQdrant) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	pts, ok := f.collections[in.GetCollectionName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	for _, p := range in.GetPoints() {
		pts[p.GetId().GetUuid()] = p
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakeQdrant) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	resp := &pb.GetResponse{}
	pts := f.collections[in.GetCollectionName()]
	for _, id := range in.GetIds() {
		if p, ok := pts[id.GetUuid()]; ok {
			resp.Result = append(resp.Result, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
		}
	}
	return resp, nil
}

func (f *fakeQdrant) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.lastSearch = in
	if _, ok := f.collections[in.GetCollectionName()]; !ok {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	return &pb.SearchResponse{Result: f.searchResp}, nil
}

func (f *fakeQdrant) points(collection string) int {
	return len(f.collections[collection])
}

var sky = semantic.Collection{Name: "docs", EmbeddingTag: "openai/text-embedding-3-small", Dimensions: 3}

func TestEnsureCollectionWritesTag(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()

	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	if f.points("docs") != 1 {
		t.Fatalf("expected tag point, got %d points", f.points("docs"))
	}
	c, err := s.Collection(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if c.Signature() != sky.Signature() {
		t.Errorf("signature = %q, want %q", c.Signature(), sky.Signature())
	}

	// Second call with the same tag is a no-op.
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureCollectionMismatch(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	other := sky
	other.EmbeddingTag = "ollama/nomic-embed-text"
	err := s.EnsureCollection(ctx, other)
	if !errors.Is(err, domain.ErrEmbeddingMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestCollectionNotFound(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	if _, err := s.Collection(context.Background(), "nope"); !errors.Is(err, semantic.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestUpsertPayload(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	rec := semantic.Record{
		ID:        "doc-enriched-0",
		Document:  "The sky is blue.",
		Embedding: []float32{0.1, 0.2, 0.3},
		Metadata:  domain.Metadata{"page": 0, "source": "sky.pdf"},
	}
	if err := s.Upsert(ctx, "docs", []semantic.Record{rec}); err != nil {
		t.Fatal(err)
	}
	p, ok := f.collections["docs"][PointID("docs", rec.ID)]
	if !ok {
		t.Fatal("point not stored under deterministic id")
	}
	payload := p.GetPayload()
	if payload[keyID].GetStringValue() != rec.ID {
		t.Errorf("id payload = %q", payload[keyID].GetStringValue())
	}
	if payload[keyDocument].GetStringValue() != rec.Document {
		t.Errorf("document payload = %q", payload[keyDocument].GetStringValue())
	}
	md := fromValue(payload[keyMetadata]).(map[string]any)
	if md["page"] != 0 || md["source"] != "sky.pdf" {
		t.Errorf("metadata = %v", md)
	}
}

func TestUpsertDimensionCheck(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, "docs", []semantic.Record{{ID: "a", Embedding: []float32{1, 2}}})
	if err == nil {
		t.Fatal("expected dimension error")
	}
	if f.points("docs") != 1 {
		t.Errorf("nothing should be written, have %d points", f.points("docs"))
	}
}

func TestUpsertError(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	f.upsertErr = errors.New("unavailable")
	err := s.Upsert(ctx, "docs", []semantic.Record{{ID: "a", Embedding: []float32{1, 2, 3}}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchExcludesTagPointAndOrders(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	hit := func(id string, score float32) *pb.ScoredPoint {
		return &pb.ScoredPoint{
			Score: score,
			Payload: map[string]*pb.Value{
				keyID:       toValue(id),
				keyDocument: toValue("text " + id),
				keyMetadata: toValue(map[string]any{"page": 1}),
			},
		}
	}
	f.searchResp = []*pb.ScoredPoint{hit("b", 0.5), hit("a", 0.9), hit("c", 0.5)}

	got, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d results", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("result %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].Content != "text a" || got[0].Metadata["page"] != 1 {
		t.Errorf("unexpected first result %+v", got[0])
	}

	if f.lastSearch.GetLimit() != 10 {
		t.Errorf("limit = %d", f.lastSearch.GetLimit())
	}
	must := f.lastSearch.GetFilter().GetMustNot()
	if len(must) != 1 || must[0].GetField().GetMatch().GetKeyword() != kindMeta {
		t.Errorf("search must exclude the tag point, filter = %v", f.lastSearch.GetFilter())
	}
}

func TestSearchMissingCollection(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	got, err := s.Search(context.Background(), "nope", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestDeleteCollection(t *testing.T) {
	f := newFake()
	s := NewWithClients(f, f)
	ctx := context.Background()
	if err := s.DeleteCollection(ctx, "nope"); err != nil {
		t.Fatalf("deleting a missing collection: %v", err)
	}
	if err := s.EnsureCollection(ctx, sky); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.collections["docs"]; ok {
		t.Error("collection still present")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("docs", "doc-enriched-0")
	if a != PointID("docs", "doc-enriched-0") {
		t.Error("point id not deterministic")
	}
	if a == PointID("other", "doc-enriched-0") {
		t.Error("point id should depend on the collection")
	}
	if a == metaPointID("docs") {
		t.Error("chunk id collides with tag point")
	}
}

func TestValueRoundTripKinds(t *testing.T) {
	in := map[string]any{"s": "x", "i": 3, "f": 1.5, "b": true, "n": nil}
	out := fromValue(toValue(in)).(map[string]any)
	for k, v := range in {
		if out[k] != v {
			t.Errorf("%s: got %v (%T), want %v", k, out[k], out[k], v)
		}
	}
}
