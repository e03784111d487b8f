// Package request validates and normalizes product search queries.
package request

import (
	"fmt"
	"strings"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
)

// Search parameter limits.
const (
	MaxQueryLength = 1024
	DefaultSize    = 20
	MaxSize        = 100

	DefaultKeywordWeight  = 0.7
	DefaultSemanticWeight = 0.3
	// Image queries lean on semantic similarity.
	ImageKeywordWeight  = 0.3
	ImageSemanticWeight = 0.7
)

// Request is a validated multimodal search query.
type Request struct {
	query          string
	image          []byte
	size           int
	keywordWeight  float64
	semanticWeight float64
	visualWeight   float64
	regionID       string
	searchType     intent.SearchType
}

// New validates and normalizes search parameters. At least one of query or
// image must be present; weights default per search type and must sum to a
// positive number when supplied.
func New(
	query string, image []byte, size int,
	keywordWeight, semanticWeight, visualWeight *float64,
	regionID string,
) (Request, error) {
	query = strings.TrimSpace(query)

	if query == "" && len(image) == 0 {
		return Request{}, fmt.Errorf("%w: at least one of query or image is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	st := determineSearchType(query, image)

	r := Request{
		query:      query,
		image:      image,
		size:       size,
		regionID:   regionID,
		searchType: st,
	}

	switch st {
	case intent.ImageOnly:
		r.keywordWeight = ImageKeywordWeight
		r.semanticWeight = ImageSemanticWeight
		r.visualWeight = 1
	case intent.MixedModal:
		r.keywordWeight = DefaultKeywordWeight
		r.semanticWeight = DefaultSemanticWeight
		r.visualWeight = 1
	default:
		r.keywordWeight = DefaultKeywordWeight
		r.semanticWeight = DefaultSemanticWeight
	}

	for _, o := range []struct {
		supplied *float64
		target   *float64
	}{
		{keywordWeight, &r.keywordWeight},
		{semanticWeight, &r.semanticWeight},
		{visualWeight, &r.visualWeight},
	} {
		if o.supplied == nil {
			continue
		}
		if *o.supplied < 0 {
			return Request{}, fmt.Errorf("%w: weights must be non-negative", domain.ErrInvalidRequest)
		}
		*o.target = *o.supplied
	}

	if r.keywordWeight+r.semanticWeight+r.visualWeight <= 0 {
		return Request{}, fmt.Errorf("%w: weights must sum to a positive number", domain.ErrInvalidRequest)
	}

	return r, nil
}

func determineSearchType(query string, image []byte) intent.SearchType {
	switch {
	case query != "" && len(image) > 0:
		return intent.MixedModal
	case len(image) > 0:
		return intent.ImageOnly
	default:
		return intent.TextOnly
	}
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Image returns the raw image bytes, nil for text-only requests.
func (r *Request) Image() []byte { return r.image }

// Size returns the maximum number of results to return.
func (r *Request) Size() int { return r.size }

// KeywordWeight returns the keyword signal weight.
func (r *Request) KeywordWeight() float64 { return r.keywordWeight }

// SemanticWeight returns the semantic signal weight.
func (r *Request) SemanticWeight() float64 { return r.semanticWeight }

// VisualWeight returns the visual signal weight.
func (r *Request) VisualWeight() float64 { return r.visualWeight }

// RegionID returns the requested pricing region, if any.
func (r *Request) RegionID() string { return r.regionID }

// SearchType reports how the query was expressed.
func (r *Request) SearchType() intent.SearchType { return r.searchType }

// HasText reports whether the request carries query text.
func (r *Request) HasText() bool { return r.query != "" }

// HasImage reports whether the request carries an image.
func (r *Request) HasImage() bool { return len(r.image) > 0 }
