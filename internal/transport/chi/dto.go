package chi

import (
	"github.com/opalgrove/catdex/internal/domain/search/intent"
	healthuc "github.com/opalgrove/catdex/internal/usecase/health"
	indexinguc "github.com/opalgrove/catdex/internal/usecase/indexing"
	searchuc "github.com/opalgrove/catdex/internal/usecase/search"
)

// errorCode identifies a failure class in error responses.
type errorCode string

const (
	codeBadRequest          errorCode = "bad_request"
	codeValidationFailed    errorCode = "validation_failed"
	codeUpstreamUnavailable errorCode = "upstream_unavailable"
	codeIndexingFailed      errorCode = "indexing_failed"
	codeReindexInProgress   errorCode = "reindex_in_progress"
	codeNotFound            errorCode = "not_found"
	codeInternalError       errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// searchRequest is the POST /store/search payload. Image is base64.
type searchRequest struct {
	Query          string   `json:"query,omitempty"`
	Image          string   `json:"image,omitempty"`
	Size           int      `json:"size,omitempty"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
	VisualWeight   *float64 `json:"visual_weight,omitempty"`
	RegionID       string   `json:"region_id,omitempty"`
}

type searchHit struct {
	ID        string             `json:"id"`
	Score     float64            `json:"score"`
	MatchType string             `json:"match_type"`
	Signals   map[string]float64 `json:"signals,omitempty"`
	Fields    map[string]string  `json:"fields,omitempty"`
}

type searchConstraints struct {
	Colors     []string `json:"colors,omitempty"`
	Materials  []string `json:"materials,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Styles     []string `json:"styles,omitempty"`
	Sizes      []string `json:"sizes,omitempty"`
	PriceMin   *int64   `json:"price_min,omitempty"`
	PriceMax   *int64   `json:"price_max,omitempty"`
}

type searchResponse struct {
	Results        []searchHit        `json:"results"`
	Total          int                `json:"total"`
	ResponseTimeMs int64              `json:"response_time_ms"`
	SearchType     string             `json:"search_type"`
	Constraints    *searchConstraints `json:"constraints,omitempty"`
}

func searchResponseFromUC(resp *searchuc.Response) searchResponse {
	hits := make([]searchHit, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		hits[i] = searchHit{
			ID:        r.DocumentID(),
			Score:     r.Score(),
			MatchType: string(r.MatchType()),
			Signals:   r.Signals(),
			Fields:    r.Fields(),
		}
	}
	out := searchResponse{
		Results:        hits,
		Total:          resp.Total,
		ResponseTimeMs: resp.ResponseTimeMs,
		SearchType:     string(resp.SearchType),
	}
	if resp.Intent != nil && !resp.Intent.Constraints.IsZero() {
		out.Constraints = constraintsToJSON(resp.Intent.Constraints)
	}
	return out
}

func constraintsToJSON(c intent.Constraints) *searchConstraints {
	return &searchConstraints{
		Colors:     c.Colors,
		Materials:  c.Materials,
		Categories: c.Categories,
		Styles:     c.Styles,
		Sizes:      c.Sizes,
		PriceMin:   c.PriceMin,
		PriceMax:   c.PriceMax,
	}
}

type reindexResponse struct {
	Processed       int   `json:"processed"`
	WithPrices      int   `json:"with_prices"`
	WithCategories  int   `json:"with_categories"`
	WithCollections int   `json:"with_collections"`
	WithMetadata    int   `json:"with_metadata"`
	DurationMs      int64 `json:"duration_ms"`
}

func reindexResponseFromUC(s indexinguc.Summary) reindexResponse {
	return reindexResponse{
		Processed:       s.Processed,
		WithPrices:      s.WithPrices,
		WithCategories:  s.WithCategories,
		WithCollections: s.WithCollections,
		WithMetadata:    s.WithMetadata,
		DurationMs:      s.Duration.Milliseconds(),
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Documents *int              `json:"documents,omitempty"`
}

func healthResponseFromUC(r healthuc.Report) healthResponse {
	checks := make(map[string]string, len(r.Checks))
	for name, res := range r.Checks {
		checks[name] = string(res)
	}
	out := healthResponse{Status: string(r.Status), Checks: checks}
	if r.Documents >= 0 {
		docs := r.Documents
		out.Documents = &docs
	}
	return out
}
