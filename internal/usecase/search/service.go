// Package search implements hybrid product search: keyword, semantic, and
// visual signals scored concurrently, merged by weighted sum, and narrowed
// by constraints extracted from the query or the query image.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/backoff"
	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
	"github.com/opalgrove/catdex/internal/domain/search/request"
	"github.com/opalgrove/catdex/internal/domain/search/result"
	"github.com/opalgrove/catdex/internal/metrics"
)

// Defaults applied when Config fields are zero.
const (
	DefaultScorerTimeout  = 5 * time.Second
	DefaultRetryAttempts  = 2
	DefaultRetryBaseDelay = 200 * time.Millisecond

	// Scorers fetch more candidates than the requested page so constraint
	// filtering still leaves enough survivors.
	candidateFactor = 3

	// Detected labels below this confidence are ignored.
	labelConfidenceMin = 0.5
)

// Config tunes scorer dispatch.
type Config struct {
	ScorerTimeout  time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Response is the outcome of one search request.
type Response struct {
	Results        []result.Result
	Total          int
	ResponseTimeMs int64
	SearchType     intent.SearchType
	Intent         *intent.Intent
}

// Service executes multimodal product searches. The intent extractor and
// label detector are optional collaborators; a nil one simply disables
// that enrichment.
type Service struct {
	store   Store
	embed   Embedder
	labels  LabelDetector
	intents IntentExtractor
	cfg     Config
	logger  *zap.Logger
}

// New creates a search service. Zero Config fields get defaults.
func New(
	store Store, embed Embedder, labels LabelDetector,
	intents IntentExtractor, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.ScorerTimeout <= 0 {
		cfg.ScorerTimeout = DefaultScorerTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return &Service{
		store: store, embed: embed, labels: labels, intents: intents,
		cfg: cfg, logger: logger,
	}
}

// Search runs the requested signals concurrently, merges them into one
// ranked list, applies extracted constraints, and truncates to the page
// size. A scorer that fails or times out drops its signal; the request
// fails only when every requested signal failed.
func (s *Service) Search(ctx context.Context, req *request.Request) (*Response, error) {
	start := time.Now()
	searchType := string(req.SearchType())

	resp, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(searchType, "failed").Inc()
		return nil, err
	}

	resp.ResponseTimeMs = time.Since(start).Milliseconds()
	metrics.SearchRequestsTotal.WithLabelValues(searchType, "success").Inc()
	metrics.SearchRequestDuration.WithLabelValues(searchType).Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.WithLabelValues(searchType).Observe(float64(len(resp.Results)))
	return resp, nil
}

func (s *Service) search(ctx context.Context, req *request.Request) (*Response, error) {
	var labelQuery string
	if req.HasImage() {
		labelQuery = s.describeImage(ctx, req.Image())
	}

	// Detected labels stand in for the query in image-only mode and
	// extend it in mixed mode, so the keyword and semantic signals see
	// the image-derived terms too.
	textQuery := req.Query()
	if labelQuery != "" {
		if !req.HasText() {
			textQuery = labelQuery
		} else {
			textQuery = textQuery + " " + labelQuery
		}
	}

	queryIntent := s.extractIntent(ctx, req, labelQuery)

	constraints := intent.Constraints{}
	if queryIntent != nil {
		constraints = queryIntent.Constraints
	}

	signals, weights := s.plan(req, textQuery)
	if len(signals) == 0 {
		return nil, fmt.Errorf("%w: no usable search signal", domain.ErrInvalidRequest)
	}

	hits, failed := s.dispatch(ctx, signals)
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: all search signals failed: %w", domain.ErrUpstreamUnavailable, failed)
	}

	merged := mergeWeighted(hits, weights)
	filtered := applyConstraints(merged, constraints, req.RegionID())

	results := filtered
	if len(results) > req.Size() {
		results = results[:req.Size()]
	}

	return &Response{
		Results:    results,
		Total:      len(filtered),
		SearchType: req.SearchType(),
		Intent:     queryIntent,
	}, nil
}

// extractIntent derives structured constraints from the query text and,
// when the image yielded labels, from the label text as well. Query
// constraints win over image constraints on conflict. Every failed
// extraction degrades to whatever the other source produced, down to an
// unconstrained search.
func (s *Service) extractIntent(ctx context.Context, req *request.Request, labelQuery string) *intent.Intent {
	if s.intents == nil {
		return nil
	}

	var out *intent.Intent
	if req.HasText() {
		extracted, err := s.intents.Extract(ctx, req.Query())
		if err != nil {
			s.logger.Warn("Intent extraction failed, searching without query constraints",
				zap.Error(err))
		} else {
			out = &extracted
		}
	}
	if labelQuery != "" {
		fromImage, err := s.intents.Extract(ctx, labelQuery)
		if err != nil {
			s.logger.Warn("Intent extraction failed for image labels",
				zap.Error(err))
		} else if out == nil {
			out = &fromImage
		} else {
			out.Constraints = out.Constraints.Merge(fromImage.Constraints)
		}
	}

	if out != nil {
		out.SearchType = req.SearchType()
	}
	return out
}

// describeImage turns detected image labels into query text for the
// keyword and semantic signals. Detection failure degrades to an empty
// description.
func (s *Service) describeImage(ctx context.Context, image []byte) string {
	if s.labels == nil {
		return ""
	}
	labels, err := s.labels.DetectLabels(ctx, image)
	if err != nil {
		s.logger.Warn("Label detection failed, skipping image description",
			zap.Error(err))
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if l.Confidence >= labelConfidenceMin && l.Label != "" {
			parts = append(parts, l.Label)
		}
	}
	return strings.Join(parts, " ")
}

// scorer is one requested signal ready to run.
type scorer struct {
	name string
	run  func(ctx context.Context) ([]result.Hit, error)
}

// plan selects the scorers the request asks for. A signal with zero
// weight, or one whose input is absent, is not dispatched.
func (s *Service) plan(req *request.Request, textQuery string) ([]scorer, map[string]float64) {
	topK := req.Size() * candidateFactor
	regionID := req.RegionID()

	var scorers []scorer
	weights := make(map[string]float64)

	if req.KeywordWeight() > 0 && textQuery != "" {
		weights[result.SignalKeyword] = req.KeywordWeight()
		scorers = append(scorers, scorer{result.SignalKeyword, func(ctx context.Context) ([]result.Hit, error) {
			hits, err := s.store.SearchKeyword(ctx, textQuery, topK, regionID)
			if err != nil {
				return nil, err
			}
			return normalizeByMax(hits), nil
		}})
	}

	if req.SemanticWeight() > 0 && textQuery != "" {
		weights[result.SignalSemantic] = req.SemanticWeight()
		scorers = append(scorers, scorer{result.SignalSemantic, func(ctx context.Context) ([]result.Hit, error) {
			vector, err := s.embed.EmbedText(ctx, textQuery)
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			return s.store.SearchSemantic(ctx, vector, topK, regionID)
		}})
	}

	if req.VisualWeight() > 0 && req.HasImage() {
		weights[result.SignalVisual] = req.VisualWeight()
		scorers = append(scorers, scorer{result.SignalVisual, func(ctx context.Context) ([]result.Hit, error) {
			vector, err := s.embed.EmbedImage(ctx, req.Image())
			if err != nil {
				return nil, fmt.Errorf("embed image: %w", err)
			}
			return s.store.SearchVisual(ctx, vector, topK, regionID)
		}})
	}

	return scorers, weights
}

// dispatch runs every scorer concurrently, each under its own timeout and
// bounded retry. Failed signals are dropped; the last failure is returned
// for diagnostics when the caller ends up with nothing.
func (s *Service) dispatch(ctx context.Context, scorers []scorer) (map[string][]result.Hit, error) {
	type outcome struct {
		hits []result.Hit
		err  error
	}
	outcomes := make([]outcome, len(scorers))

	var wg sync.WaitGroup
	for i, sc := range scorers {
		wg.Add(1)
		go func(i int, sc scorer) {
			defer wg.Done()
			scorerCtx, cancel := context.WithTimeout(ctx, s.cfg.ScorerTimeout)
			defer cancel()

			var hits []result.Hit
			err := backoff.Retry(scorerCtx, func() error {
				var runErr error
				hits, runErr = sc.run(scorerCtx)
				return runErr
			}, s.cfg.RetryAttempts, s.cfg.RetryBaseDelay)
			outcomes[i] = outcome{hits: hits, err: err}
		}(i, sc)
	}
	wg.Wait()

	signalHits := make(map[string][]result.Hit, len(scorers))
	var lastErr error
	for i, sc := range scorers {
		if outcomes[i].err != nil {
			lastErr = outcomes[i].err
			metrics.SearchSignalErrorsTotal.WithLabelValues(sc.name).Inc()
			s.logger.Warn("Search signal dropped",
				zap.String("signal", sc.name),
				zap.Error(outcomes[i].err))
			continue
		}
		signalHits[sc.name] = outcomes[i].hits
	}
	return signalHits, lastErr
}
