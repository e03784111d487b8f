// Package store adapts the db layer to the repositories the indexing and
// search usecases consume: product documents stored as hashes under one
// FT index, with keyword and KNN search over them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/opalgrove/catdex/internal/db"
	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

// store is the consumer interface for the underlying database (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, dropDocuments bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements usecase/indexing.DocumentStore and usecase/search.Store.
type Repo struct {
	store    store
	textDim  int
	imageDim int
}

// New creates a product store repository. The embedding dimensions fix
// the vector field sizes in the index schema.
func New(s store, textDim, imageDim int) *Repo {
	return &Repo{store: s, textDim: textDim, imageDim: imageDim}
}

// DeleteIndex drops the product index together with all indexed hashes.
// A missing index is not an error, full reindex always starts here.
func (r *Repo) DeleteIndex(ctx context.Context) error {
	err := r.store.DropIndex(ctx, IndexName, true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w: %w", domain.ErrIndexingFailure, err)
	}
	return nil
}

// EnsureIndex creates the product index for the given regions.
func (r *Repo) EnsureIndex(ctx context.Context, regions []catalog.Region) error {
	def := Schema(regions, r.textDim, r.imageDim)
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w: %w", domain.ErrIndexingFailure, err)
	}
	return nil
}

// IndexBatch writes a batch of documents in one pipelined round trip.
func (r *Repo) IndexBatch(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(docs))
	for i := range docs {
		items = append(items, db.HashSetItem{
			Key:    docKey(docs[i].ID),
			Fields: buildHashFields(&docs[i]),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("index batch: %w: %w", domain.ErrIndexingFailure, err)
	}
	return nil
}

// IndexReady reports whether the product index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return false, fmt.Errorf("index info: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count documents: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

// SearchKeyword runs a BM25 query over the text fields. Scores are raw
// BM25 values; normalization happens during merging. regionID, when set,
// adds that region's price fields to the returned hit fields.
func (r *Repo) SearchKeyword(ctx context.Context, query string, topK int, regionID string) ([]result.Hit, error) {
	q := &db.TextQuery{
		IndexName:    IndexName,
		Query:        query,
		SearchFields: KeywordSearchFields,
		TopK:         topK,
		ReturnFields: returnFieldsFor(regionID),
	}
	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return toHits(sr), nil
}

// SearchSemantic runs a KNN query against the text embedding field.
// Scores arrive as cosine similarity in [0, 1].
func (r *Repo) SearchSemantic(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error) {
	return r.searchVector(ctx, document.FieldTextEmbedding, vector, topK, regionID)
}

// SearchVisual runs a KNN query against the image embedding field.
func (r *Repo) SearchVisual(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error) {
	return r.searchVector(ctx, document.FieldImageEmbedding, vector, topK, regionID)
}

func (r *Repo) searchVector(ctx context.Context, field string, vector []float32, topK int, regionID string) ([]result.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  field,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFieldsFor(regionID),
	}
	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w: %w", field, domain.ErrStoreUnavailable, err)
	}
	return toHits(sr), nil
}

func returnFieldsFor(regionID string) []string {
	if regionID == "" {
		return ReturnFields
	}
	fields := make([]string, 0, len(ReturnFields)+2)
	fields = append(fields, ReturnFields...)
	return append(fields, document.RegionPriceField(regionID), document.RegionCurrencyField(regionID))
}

func toHits(sr *db.SearchResult) []result.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, result.Hit{
			DocumentID: docID(entry.Key),
			Score:      entry.Score,
			Fields:     entry.Fields,
		})
	}
	return hits
}
