package search

import (
	"context"

	"github.com/opalgrove/catdex/internal/domain/search/intent"
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

// Store defines the single-signal search operations the service composes.
// A non-empty regionID asks the store to return that region's price fields
// alongside the defaults.
type Store interface {
	SearchKeyword(ctx context.Context, query string, topK int, regionID string) ([]result.Hit, error)
	SearchSemantic(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error)
	SearchVisual(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error)
}

// Embedder vectorizes query text and images.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// LabelDetector names what a query image depicts.
type LabelDetector interface {
	DetectLabels(ctx context.Context, image []byte) ([]intent.Label, error)
}

// IntentExtractor derives structured constraints from a free-text query.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) (intent.Intent, error)
}
