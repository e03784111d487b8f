package indexing

import (
	"context"

	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/document"
)

// ProductSource reads the upstream catalog in reindex order.
type ProductSource interface {
	ListCategories(ctx context.Context) (map[string]catalog.Category, error)
	ListRegions(ctx context.Context) ([]catalog.Region, error)
	ListProductsPage(ctx context.Context, offset, limit int) ([]catalog.Product, error)
	ListVariantPrices(ctx context.Context, variantIDs []string) (map[string][]catalog.Price, error)
}

// DocumentStore persists transformed documents under a searchable index.
type DocumentStore interface {
	DeleteIndex(ctx context.Context) error
	EnsureIndex(ctx context.Context, regions []catalog.Region) error
	IndexBatch(ctx context.Context, docs []document.Document) error
}

// Embedder vectorizes documents at indexing time.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedImageURL(ctx context.Context, url string) ([]float32, error)
}
