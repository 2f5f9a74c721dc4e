// Package chroma stores chunk vectors in a Chroma server through the v2 HTTP
// API. Vectors are L2-normalised before they are written so Chroma's default
// squared-L2 distance maps onto cosine similarity.
package chroma

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/WessleyAI/pdfqa/engine/domain"
	"github.com/WessleyAI/pdfqa/engine/semantic"
)

// Collection metadata keys.
const (
	metaTag  = "pdfqa_embedding_tag"
	metaDims = "pdfqa_dimensions"
)

// Store is a semantic.Store over a Chroma client.
type Store struct {
	client chromago.Client
}

var _ semantic.Store = (*Store)(nil)

// BaseURL converts a chroma:// or chromas:// DSN to the server's HTTP base URL.
func BaseURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("chroma: parse dsn: %w", err)
	}
	switch u.Scheme {
	case "chroma":
		u.Scheme = "http"
	case "chromas":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("chroma: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("chroma: dsn %q has no host", dsn)
	}
	return u.String(), nil
}

// Open connects to the Chroma server named by dsn.
func Open(dsn string) (*Store, error) {
	base, err := BaseURL(dsn)
	if err != nil {
		return nil, err
	}
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(base))
	if err != nil {
		return nil, fmt.Errorf("chroma: create client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) find(ctx context.Context, name string) (chromago.Collection, error) {
	cols, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("chroma: list collections: %w", err)
	}
	for _, c := range cols {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, semantic.ErrCollectionNotFound
}

// EnsureCollection creates the collection with its tag or checks the stored one.
func (s *Store) EnsureCollection(ctx context.Context, c semantic.Collection) error {
	stored, err := s.Collection(ctx, c.Name)
	if err == nil {
		return stored.Compatible(c)
	}
	if err != semantic.ErrCollectionNotFound {
		return err
	}
	_, err = s.client.GetOrCreateCollection(ctx, c.Name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute(metaTag, c.EmbeddingTag),
				chromago.NewIntAttribute(metaDims, int64(c.Dimensions)),
			),
		),
	)
	if err != nil {
		return fmt.Errorf("chroma: create collection %s: %w", c.Name, err)
	}
	return nil
}

// Collection reads the tag from the collection metadata.
func (s *Store) Collection(ctx context.Context, name string) (*semantic.Collection, error) {
	col, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	out := &semantic.Collection{Name: name}
	if md := col.Metadata(); md != nil {
		if tag, ok := md.GetString(metaTag); ok {
			out.EmbeddingTag = tag
		}
		if dims, ok := md.GetInt(metaDims); ok {
			out.Dimensions = int(dims)
		}
	}
	return out, nil
}

// DeleteCollection removes the collection if present.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if _, err := s.find(ctx, name); err != nil {
		if err == semantic.ErrCollectionNotFound {
			return nil
		}
		return err
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("chroma: delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes all records in one request.
func (s *Store) Upsert(ctx context.Context, collection string, records []semantic.Record) error {
	if len(records) == 0 {
		return nil
	}
	col, err := s.find(ctx, collection)
	if err != nil {
		return err
	}
	c, err := s.Collection(ctx, collection)
	if err != nil {
		return err
	}
	if err := semantic.CheckRecords(records, c.Dimensions); err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	vecs := make([]embeddings.Embedding, len(records))
	metas := make([]chromago.DocumentMetadata, len(records))
	for i, r := range records {
		ids[i] = chromago.DocumentID(r.ID)
		texts[i] = r.Document
		vecs[i] = embeddings.NewEmbeddingFromFloat32(Normalize(r.Embedding))
		metas[i] = chromago.NewDocumentMetadata(Attributes(r.Metadata)...)
	}
	err = col.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vecs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("chroma: upsert %d records: %w", len(records), err)
	}
	return nil
}

// Search queries the k nearest records to embedding.
func (s *Store) Search(ctx context.Context, collection string, embedding []float32, k int) ([]semantic.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	col, err := s.find(ctx, collection)
	if err == semantic.ErrCollectionNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res, err := col.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(Normalize(embedding))),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: query: %w", err)
	}

	idGroups := res.GetIDGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}
	docs := res.GetDocumentsGroups()
	metas := res.GetMetadatasGroups()
	dists := res.GetDistancesGroups()

	out := make([]semantic.SearchResult, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		r := semantic.SearchResult{ID: string(id), Metadata: domain.Metadata{}}
		if len(docs) > 0 && i < len(docs[0]) && docs[0][i] != nil {
			r.Content = docs[0][i].ContentString()
		}
		if len(dists) > 0 && i < len(dists[0]) {
			r.Score = ScoreFromDistance(float32(dists[0][i]))
		}
		if len(metas) > 0 && i < len(metas[0]) && metas[0][i] != nil {
			md, err := decodeDocumentMetadata(metas[0][i])
			if err != nil {
				return nil, fmt.Errorf("chroma: decode metadata %s: %w", id, err)
			}
			r.Metadata = md
		}
		out = append(out, r)
	}
	return semantic.Rank(out, k), nil
}

// Normalize returns v scaled to unit length. A zero vector is returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// ScoreFromDistance converts squared L2 distance between unit vectors to
// cosine similarity.
func ScoreFromDistance(d float32) float32 {
	return 1 - d/2
}

// Attributes converts chunk metadata to Chroma's scalar attribute set.
// Values Chroma cannot hold are stored as their string form.
func Attributes(md domain.Metadata) []*chromago.MetaAttribute {
	attrs := make([]*chromago.MetaAttribute, 0, len(md))
	for k, v := range md {
		switch tv := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, tv))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(tv)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, tv))
		case float64:
			attrs = append(attrs, chromago.NewFloatAttribute(k, tv))
		case bool:
			attrs = append(attrs, chromago.NewBoolAttribute(k, tv))
		case nil:
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(tv)))
		}
	}
	return attrs
}

func decodeDocumentMetadata(md chromago.DocumentMetadata) (domain.Metadata, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	return semantic.DecodeMetadata(raw)
}
