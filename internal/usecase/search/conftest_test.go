package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
	"github.com/opalgrove/catdex/internal/domain/search/request"
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

type mockStore struct {
	searchKeywordFn  func(ctx context.Context, query string, topK int, regionID string) ([]result.Hit, error)
	searchSemanticFn func(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error)
	searchVisualFn   func(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error)
}

func (m *mockStore) SearchKeyword(ctx context.Context, query string, topK int, regionID string) ([]result.Hit, error) {
	if m.searchKeywordFn != nil {
		return m.searchKeywordFn(ctx, query, topK, regionID)
	}
	return nil, nil
}

func (m *mockStore) SearchSemantic(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error) {
	if m.searchSemanticFn != nil {
		return m.searchSemanticFn(ctx, vector, topK, regionID)
	}
	return nil, nil
}

func (m *mockStore) SearchVisual(ctx context.Context, vector []float32, topK int, regionID string) ([]result.Hit, error) {
	if m.searchVisualFn != nil {
		return m.searchVisualFn(ctx, vector, topK, regionID)
	}
	return nil, nil
}

type mockEmbedder struct {
	embedTextFn  func(ctx context.Context, text string) ([]float32, error)
	embedImageFn func(ctx context.Context, image []byte) ([]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFn != nil {
		return m.embedTextFn(ctx, text)
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if m.embedImageFn != nil {
		return m.embedImageFn(ctx, image)
	}
	return []float32{0.3, 0.4}, nil
}

type mockLabels struct {
	detectLabelsFn func(ctx context.Context, image []byte) ([]intent.Label, error)
}

func (m *mockLabels) DetectLabels(ctx context.Context, image []byte) ([]intent.Label, error) {
	if m.detectLabelsFn != nil {
		return m.detectLabelsFn(ctx, image)
	}
	return nil, nil
}

type mockIntents struct {
	extractFn func(ctx context.Context, query string) (intent.Intent, error)
}

func (m *mockIntents) Extract(ctx context.Context, query string) (intent.Intent, error) {
	if m.extractFn != nil {
		return m.extractFn(ctx, query)
	}
	return intent.Intent{OriginalQuery: query}, nil
}

func testConfig() Config {
	return Config{
		ScorerTimeout:  time.Second,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
	}
}

// newTestService assigns the optional mocks only when non-nil: a typed
// nil pointer boxed into an interface would defeat the service's nil
// checks and crash on the first call.
func newTestService(store *mockStore, embed *mockEmbedder, labels *mockLabels, intents *mockIntents) *Service {
	var ld LabelDetector
	if labels != nil {
		ld = labels
	}
	var ie IntentExtractor
	if intents != nil {
		ie = intents
	}
	return New(store, embed, ld, ie, testConfig(), zap.NewNop())
}

func textRequest(t *testing.T, query string, size int) *request.Request {
	t.Helper()
	req, err := request.New(query, nil, size, nil, nil, nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	return &req
}

func hit(id string, score float64, fields map[string]string) result.Hit {
	return result.Hit{DocumentID: id, Score: score, Fields: fields}
}

func sofaFields(price string) map[string]string {
	return map[string]string{
		document.FieldTitle:             "Nordhaven Sofa",
		document.FieldDescription:       "Three-seat sofa with oak legs",
		document.FieldDefaultPrice:      price,
		document.FacetField("material"): "oak",
	}
}
