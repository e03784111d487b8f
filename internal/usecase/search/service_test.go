package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
	"github.com/opalgrove/catdex/internal/domain/search/request"
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

func TestSearch_TextOnlyRunsKeywordAndSemantic(t *testing.T) {
	var keywordQuery, semanticText string
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, query string, topK int, _ string) ([]result.Hit, error) {
			keywordQuery = query
			if topK != 20*candidateFactor {
				t.Errorf("keyword topK = %d, want %d", topK, 20*candidateFactor)
			}
			return []result.Hit{hit("prod_1", 8.0, sofaFields("89900"))}, nil
		},
		searchSemanticFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_1", 0.9, sofaFields("89900"))}, nil
		},
	}
	me := &mockEmbedder{
		embedTextFn: func(_ context.Context, text string) ([]float32, error) {
			semanticText = text
			return []float32{0.1}, nil
		},
	}
	svc := newTestService(ms, me, nil, nil)

	resp, err := svc.Search(context.Background(), textRequest(t, "oak sofa", 20))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if keywordQuery != "oak sofa" || semanticText != "oak sofa" {
		t.Errorf("scorer queries = %q / %q, want both %q", keywordQuery, semanticText, "oak sofa")
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
	r := resp.Results[0]
	if r.MatchType() != result.Hybrid {
		t.Errorf("MatchType = %q, want hybrid", r.MatchType())
	}
	// 0.7 * (8.0/8.0) + 0.3 * 0.9
	want := 0.7 + 0.3*0.9
	if diff := r.Score() - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Score = %v, want %v", r.Score(), want)
	}
	if resp.SearchType != intent.TextOnly {
		t.Errorf("SearchType = %q, want text_only", resp.SearchType)
	}
}

func TestSearch_WeightedRankingPrefersKeywordHeavySignal(t *testing.T) {
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_a", 5.0, nil)}, nil
		},
		searchSemanticFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_b", 1.0, nil)}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, nil)

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa", 10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(resp.Results))
	}
	// A: keyword only, normalized 1.0 * weight 0.7. B: semantic only, 1.0 * 0.3.
	if resp.Results[0].DocumentID() != "prod_a" || resp.Results[1].DocumentID() != "prod_b" {
		t.Fatalf("order = %s, %s; want prod_a first",
			resp.Results[0].DocumentID(), resp.Results[1].DocumentID())
	}
	if got := resp.Results[0].Score(); got != 0.7 {
		t.Errorf("prod_a score = %v, want 0.7", got)
	}
	if got := resp.Results[1].Score(); got != 0.3 {
		t.Errorf("prod_b score = %v, want 0.3", got)
	}
	if resp.Results[0].MatchType() != result.Exact {
		t.Errorf("prod_a MatchType = %q, want exact", resp.Results[0].MatchType())
	}
	if resp.Results[1].MatchType() != result.Semantic {
		t.Errorf("prod_b MatchType = %q, want semantic", resp.Results[1].MatchType())
	}
}

func TestSearch_FailedSignalIsDropped(t *testing.T) {
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_1", 3.0, nil)}, nil
		},
		searchSemanticFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			return nil, errors.New("vector index offline")
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, nil)

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa", 10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
	if resp.Results[0].MatchType() != result.Exact {
		t.Errorf("MatchType = %q, want exact", resp.Results[0].MatchType())
	}
}

func TestSearch_AllSignalsFailed(t *testing.T) {
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return nil, errors.New("store down")
		},
	}
	me := &mockEmbedder{
		embedTextFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	svc := newTestService(ms, me, nil, nil)

	_, err := svc.Search(context.Background(), textRequest(t, "sofa", 10))
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("Search() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestSearch_RetriesTransientScorerFailure(t *testing.T) {
	var attempts int32
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, errors.New("transient")
			}
			return []result.Hit{hit("prod_1", 1.0, nil)}, nil
		},
	}
	cfg := testConfig()
	cfg.RetryAttempts = 3
	svc := New(ms, &mockEmbedder{}, nil, nil, cfg, zap.NewNop())

	req, err := request.New("sofa", nil, 10, f64(1), f64(0), nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	resp, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("keyword attempts = %d, want 2", attempts)
	}
	if len(resp.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(resp.Results))
	}
}

func TestSearch_ScorerTimeoutDropsSignal(t *testing.T) {
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_1", 2.0, nil)}, nil
		},
		searchSemanticFn: func(ctx context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	cfg := testConfig()
	cfg.ScorerTimeout = 20 * time.Millisecond
	svc := New(ms, &mockEmbedder{}, nil, nil, cfg, zap.NewNop())

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa", 10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID() != "prod_1" {
		t.Fatalf("Results = %+v, want the keyword hit only", resp.Results)
	}
}

func TestSearch_IntentConstraintsNarrowResults(t *testing.T) {
	maxPrice := int64(50000)
	mi := &mockIntents{
		extractFn: func(_ context.Context, query string) (intent.Intent, error) {
			return intent.Intent{
				OriginalQuery: query,
				Constraints:   intent.Constraints{PriceMax: &maxPrice},
			}, nil
		},
	}
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{
				hit("prod_cheap", 2.0, sofaFields("39900")),
				hit("prod_costly", 3.0, sofaFields("89900")),
			}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, mi)

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa under 500", 10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID() != "prod_cheap" {
		t.Fatalf("Results = %+v, want prod_cheap only", resp.Results)
	}
	if resp.Intent == nil || resp.Intent.Constraints.PriceMax == nil {
		t.Error("Intent not propagated to the response")
	}
}

func TestSearch_IntentExtractionFailureDegrades(t *testing.T) {
	mi := &mockIntents{
		extractFn: func(_ context.Context, _ string) (intent.Intent, error) {
			return intent.Intent{}, errors.New("model overloaded")
		},
	}
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_1", 1.0, sofaFields("89900"))}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, mi)

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa", 10))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1 (unconstrained)", len(resp.Results))
	}
	if resp.Intent != nil {
		t.Error("Intent should be nil after failed extraction")
	}
}

func TestSearch_ImageOnlyUsesDetectedLabels(t *testing.T) {
	var keywordQuery string
	var visualCalled bool
	ml := &mockLabels{
		detectLabelsFn: func(_ context.Context, _ []byte) ([]intent.Label, error) {
			return []intent.Label{
				{Label: "sofa", Confidence: 0.95},
				{Label: "blue", Confidence: 0.8},
				{Label: "cat", Confidence: 0.2},
			}, nil
		},
	}
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, query string, _ int, _ string) ([]result.Hit, error) {
			keywordQuery = query
			return nil, nil
		},
		searchVisualFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			visualCalled = true
			return []result.Hit{hit("prod_1", 0.88, nil)}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, ml, nil)

	req, err := request.New("", []byte{0xff, 0xd8}, 10, nil, nil, nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	resp, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if keywordQuery != "sofa blue" {
		t.Errorf("keyword query from labels = %q, want %q", keywordQuery, "sofa blue")
	}
	if !visualCalled {
		t.Error("visual signal was not dispatched")
	}
	if resp.SearchType != intent.ImageOnly {
		t.Errorf("SearchType = %q, want image_only", resp.SearchType)
	}
	if len(resp.Results) != 1 || resp.Results[0].MatchType() != result.Visual {
		t.Errorf("Results = %+v, want one visual match", resp.Results)
	}
}

func TestSearch_ImageLabelsDriveConstraints(t *testing.T) {
	ml := &mockLabels{
		detectLabelsFn: func(_ context.Context, _ []byte) ([]intent.Label, error) {
			return []intent.Label{
				{Label: "sofa", Confidence: 0.95},
				{Label: "blue", Confidence: 0.8},
			}, nil
		},
	}
	mi := &mockIntents{
		extractFn: func(_ context.Context, query string) (intent.Intent, error) {
			if query != "sofa blue" {
				t.Errorf("extraction text = %q, want %q", query, "sofa blue")
			}
			return intent.Intent{
				OriginalQuery: query,
				Constraints:   intent.Constraints{Colors: []string{"blue"}},
			}, nil
		},
	}
	ms := &mockStore{
		searchVisualFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{
				hit("prod_blue", 0.9, map[string]string{document.FieldTitle: "Blue Velvet Sofa"}),
				hit("prod_red", 0.8, map[string]string{document.FieldTitle: "Red Leather Sofa"}),
			}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, ml, mi)

	req, err := request.New("", []byte{0xff, 0xd8}, 10, nil, nil, nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	resp, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID() != "prod_blue" {
		t.Errorf("Results = %+v, want only the blue sofa", resp.Results)
	}
}

func TestSearch_MixedModalCombinesQueryAndLabels(t *testing.T) {
	var keywordQuery string
	var extracted []string
	ml := &mockLabels{
		detectLabelsFn: func(_ context.Context, _ []byte) ([]intent.Label, error) {
			return []intent.Label{
				{Label: "velvet", Confidence: 0.9},
				{Label: "green", Confidence: 0.85},
			}, nil
		},
	}
	mi := &mockIntents{
		extractFn: func(_ context.Context, query string) (intent.Intent, error) {
			extracted = append(extracted, query)
			if query == "red sofa" {
				return intent.Intent{
					OriginalQuery: query,
					Constraints:   intent.Constraints{Colors: []string{"red"}},
				}, nil
			}
			return intent.Intent{
				OriginalQuery: query,
				Constraints: intent.Constraints{
					Colors:    []string{"green"},
					Materials: []string{"velvet"},
				},
			}, nil
		},
	}
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, query string, _ int, _ string) ([]result.Hit, error) {
			keywordQuery = query
			return []result.Hit{hit("prod_red_velvet", 0.9, map[string]string{
				document.FieldTitle:             "Red Sofa",
				document.FacetField("material"): "velvet",
			})}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, ml, mi)

	req, err := request.New("red sofa", []byte{0xff, 0xd8}, 10, nil, nil, nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	resp, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if keywordQuery != "red sofa velvet green" {
		t.Errorf("keyword query = %q, want query text extended by labels", keywordQuery)
	}
	if len(extracted) != 2 || extracted[0] != "red sofa" || extracted[1] != "velvet green" {
		t.Errorf("extraction queries = %v, want query text then label text", extracted)
	}
	if resp.Intent == nil {
		t.Fatal("Intent not propagated to the response")
	}
	got := resp.Intent.Constraints
	if len(got.Colors) != 1 || got.Colors[0] != "red" {
		t.Errorf("Colors = %v, want query-derived color to win", got.Colors)
	}
	if len(got.Materials) != 1 || got.Materials[0] != "velvet" {
		t.Errorf("Materials = %v, want image-derived material filled in", got.Materials)
	}
	if resp.SearchType != intent.MixedModal {
		t.Errorf("SearchType = %q, want mixed_modal", resp.SearchType)
	}
}

func TestSearch_ImageOnlyWithoutDetectorStillSearchesVisually(t *testing.T) {
	ms := &mockStore{
		searchVisualFn: func(_ context.Context, _ []float32, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{hit("prod_1", 0.7, nil)}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, nil)

	req, err := request.New("", []byte{0xff, 0xd8}, 10, nil, nil, nil, "")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	resp, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
}

func TestSearch_TruncatesAfterFiltering(t *testing.T) {
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, _ string) ([]result.Hit, error) {
			return []result.Hit{
				hit("prod_1", 3.0, sofaFields("10000")),
				hit("prod_2", 2.0, sofaFields("20000")),
				hit("prod_3", 1.0, sofaFields("30000")),
			}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, nil)

	resp, err := svc.Search(context.Background(), textRequest(t, "sofa", 2))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(resp.Results))
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, want 3", resp.Total)
	}
	if resp.Results[0].DocumentID() != "prod_1" {
		t.Errorf("first result = %s, want prod_1", resp.Results[0].DocumentID())
	}
}

func TestSearch_RegionIDForwardedToStore(t *testing.T) {
	var keywordRegion string
	ms := &mockStore{
		searchKeywordFn: func(_ context.Context, _ string, _ int, regionID string) ([]result.Hit, error) {
			keywordRegion = regionID
			return []result.Hit{hit("prod_1", 1.0, nil)}, nil
		},
	}
	svc := newTestService(ms, &mockEmbedder{}, nil, nil)

	req, err := request.New("sofa", nil, 10, f64(1), f64(0), nil, "us")
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	if _, err = svc.Search(context.Background(), &req); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if keywordRegion != "us" {
		t.Errorf("regionID forwarded = %q, want %q", keywordRegion, "us")
	}
}

func f64(v float64) *float64 { return &v }
