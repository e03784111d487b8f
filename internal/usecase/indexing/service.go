// Package indexing implements the full reindex pipeline: page the
// catalog, transform products into documents, attach embeddings, and
// write batches into a freshly rebuilt index.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opalgrove/catdex/internal/backoff"
	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/metrics"
)

// Defaults applied when Config fields are zero.
const (
	DefaultBatchSize      = 100
	DefaultWorkers        = 4
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Config tunes the pipeline.
type Config struct {
	BatchSize      int
	Workers        int
	EmbedImages    bool
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Summary reports what a reindex run accomplished.
type Summary struct {
	Processed       int
	WithPrices      int
	WithCategories  int
	WithCollections int
	WithMetadata    int
	Duration        time.Duration
}

// Service runs full reindexes. A run is idempotent: the index is dropped
// and rebuilt from scratch every time.
type Service struct {
	source ProductSource
	store  DocumentStore
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates an indexing service. Zero Config fields get defaults.
func New(source ProductSource, store DocumentStore, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return &Service{source: source, store: store, embed: embed, cfg: cfg, logger: logger}
}

// Reindex rebuilds the product index from the catalog. On a fatal store
// failure the returned error carries the offset of the failed batch so
// the operator knows how far the run got.
func (s *Service) Reindex(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	regions, err := s.source.ListRegions(ctx)
	if err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("list regions: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	categories, err := s.source.ListCategories(ctx)
	if err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("list categories: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	if err := s.store.DeleteIndex(ctx); err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("delete index: %w", err)
	}
	if err := s.store.EnsureIndex(ctx, regions); err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("ensure index: %w", err)
	}

	s.logger.Info("Reindex started",
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Int("regions", len(regions)),
		zap.Int("categories", len(categories)),
	)

	offset := 0
	for {
		products, err := s.source.ListProductsPage(ctx, offset, s.cfg.BatchSize)
		if err != nil {
			metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
			return summary, fmt.Errorf("list products at offset %d: %w: %w",
				offset, domain.ErrUpstreamUnavailable, err)
		}
		if len(products) == 0 {
			break
		}

		batchStart := time.Now()

		docs := s.transformBatch(ctx, products, regions, categories)
		s.attachEmbeddings(ctx, docs)

		if err := s.store.IndexBatch(ctx, docs); err != nil {
			metrics.IndexingProductsTotal.WithLabelValues("failed").Add(float64(len(docs)))
			metrics.IndexingRunsTotal.WithLabelValues("failed").Inc()
			return summary, domain.NewIndexingError(offset, err)
		}

		for i := range docs {
			summary.Processed++
			if docs[i].HasPrices() {
				summary.WithPrices++
			}
			if docs[i].HasCategories() {
				summary.WithCategories++
			}
			if len(docs[i].CollectionIDs) > 0 {
				summary.WithCollections++
			}
			if len(docs[i].MetaFacets) > 0 {
				summary.WithMetadata++
			}
		}

		metrics.IndexingProductsTotal.WithLabelValues("processed").Add(float64(len(docs)))
		metrics.IndexingBatchDuration.Observe(time.Since(batchStart).Seconds())

		s.logger.Debug("Batch indexed",
			zap.Int("offset", offset),
			zap.Int("count", len(docs)),
			zap.Duration("duration", time.Since(batchStart)),
		)

		offset += len(products)
		if len(products) < s.cfg.BatchSize {
			break
		}
	}

	summary.Duration = time.Since(start)
	metrics.IndexingRunsTotal.WithLabelValues("success").Inc()
	metrics.IndexingRunDuration.Observe(summary.Duration.Seconds())

	s.logger.Info("Reindex complete",
		zap.Int("processed", summary.Processed),
		zap.Int("with_prices", summary.WithPrices),
		zap.Int("with_categories", summary.WithCategories),
		zap.Int("with_collections", summary.WithCollections),
		zap.Int("with_metadata", summary.WithMetadata),
		zap.Duration("duration", summary.Duration),
	)

	return summary, nil
}

// transformBatch fetches prices for the batch in one call and transforms
// products concurrently, restoring input order by index. A failed price
// lookup degrades to indexing the batch without prices.
func (s *Service) transformBatch(
	ctx context.Context,
	products []catalog.Product,
	regions []catalog.Region,
	categories map[string]catalog.Category,
) []document.Document {
	variantIDs := make([]string, 0, len(products))
	for i := range products {
		variantIDs = append(variantIDs, products[i].VariantIDs()...)
	}

	var prices map[string][]catalog.Price
	if len(variantIDs) > 0 {
		var err error
		prices, err = s.source.ListVariantPrices(ctx, variantIDs)
		if err != nil {
			s.logger.Warn("Price lookup failed, indexing batch without prices",
				zap.Int("variants", len(variantIDs)),
				zap.Error(err),
			)
			prices = nil
		}
	}

	docs := make([]document.Document, len(products))
	sem := make(chan struct{}, s.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range products {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			docs[i] = document.Transform(&products[i], prices, regions, categories)
			return nil
		})
	}
	// Transform itself cannot fail; the only error is cancellation, and
	// the subsequent IndexBatch surfaces that.
	_ = g.Wait()

	return docs
}

// attachEmbeddings adds text embeddings for the whole batch in one
// provider call and, when enabled, image embeddings per thumbnail.
// Embedding failures degrade to indexing without vectors.
func (s *Service) attachEmbeddings(ctx context.Context, docs []document.Document) {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].EmbeddingText()
	}

	var vectors [][]float32
	err := backoff.Retry(ctx, func() error {
		var embErr error
		vectors, embErr = s.embed.EmbedTexts(ctx, texts)
		return embErr
	}, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay)
	if err != nil {
		s.logger.Warn("Text embedding failed, indexing batch without text vectors",
			zap.Int("count", len(docs)),
			zap.Error(err),
		)
	} else if len(vectors) == len(docs) {
		for i := range docs {
			docs[i].TextEmbedding = vectors[i]
		}
	}

	if !s.cfg.EmbedImages {
		return
	}

	sem := make(chan struct{}, s.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		if docs[i].Thumbnail == "" {
			continue
		}
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			vec, embErr := s.embed.EmbedImageURL(gctx, docs[i].Thumbnail)
			if embErr != nil {
				s.logger.Warn("Image embedding failed",
					zap.String("product_id", docs[i].ID),
					zap.Error(embErr),
				)
				return nil
			}
			docs[i].ImageEmbedding = vec
			return nil
		})
	}
	_ = g.Wait()
}
