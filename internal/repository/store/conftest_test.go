package store

import (
	"context"
	"testing"

	"github.com/opalgrove/catdex/internal/db"
	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/domain/pricing"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string, dropDocuments bool) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn  func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, dropDocuments bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, dropDocuments)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, 1536, 512)
	return repo, ms
}

func testRegions() []catalog.Region {
	return []catalog.Region{
		{ID: "us", Name: "United States", CurrencyCode: "usd"},
		{ID: "eu", Name: "Europe", CurrencyCode: "eur"},
	}
}

func testDocument() document.Document {
	return document.Document{
		ID:          "prod_1",
		Title:       "Nordhaven Sofa",
		Description: "Three-seater in oak",
		Handle:      "nordhaven-sofa",
		Status:      "published",

		CategoryIDs:   []string{"cat_furniture", "cat_sofas"},
		CategoryNames: []string{"Furniture", "Sofas"},
		CategoryPath:  "Furniture > Sofas",
		CategoryLevel: 1,

		TagValues:    []string{"bestseller", "new"},
		VariantCount: 2,
		VariantSKUs:  []string{"NH-S-1", "NH-S-2"},

		MinPrice:        89900,
		MaxPrice:        129900,
		DefaultPrice:    89900,
		DefaultCurrency: "usd",
		RegionPrices: map[string]pricing.RegionPrice{
			"us": {MinPrice: 89900, CurrencyCode: "usd"},
		},

		MetaFacets: map[string]string{"meta_material": "oak"},
		Metadata:   map[string]string{"material": "oak", "origin": "dk"},

		TextEmbedding:  []float32{0.1, 0.2, 0.3},
		ImageEmbedding: []float32{0.4, 0.5},
	}
}
