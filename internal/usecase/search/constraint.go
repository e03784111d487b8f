package search

import (
	"strconv"
	"strings"

	"github.com/opalgrove/catdex/internal/domain/document"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

// Stored fields each constraint kind is matched against.
var (
	colorFields = []string{
		document.FieldTitle, document.FieldSubtitle, document.FieldDescription,
		document.FieldOptionValues, document.FieldTagValues,
	}
	materialFields = []string{
		document.FieldTitle, document.FieldDescription,
		document.FieldTagValues,
		document.FacetField("material"), document.FacetField("filling"),
		document.FacetField("cover_type"),
	}
	categoryFields = []string{
		document.FieldCategoryNames, document.FieldCategoryPath,
	}
	styleFields = []string{
		document.FieldTitle, document.FieldSubtitle, document.FieldDescription,
		document.FieldTagValues,
	}
	sizeFields = []string{
		document.FieldTitle, document.FieldOptionValues,
		document.FieldVariantTitles,
	}
)

// applyConstraints drops candidates that fail any defined constraint.
// Fields combine with AND; values within one field combine with OR. The
// relative order of survivors is preserved, so it must run after scoring
// but before truncation.
func applyConstraints(candidates []result.Result, cons intent.Constraints, regionID string) []result.Result {
	if cons.IsZero() {
		return candidates
	}

	filtered := make([]result.Result, 0, len(candidates))
	for _, c := range candidates {
		if satisfies(&c, cons, regionID) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func satisfies(r *result.Result, cons intent.Constraints, regionID string) bool {
	checks := []struct {
		values []string
		fields []string
	}{
		{cons.Colors, colorFields},
		{cons.Materials, materialFields},
		{cons.Categories, categoryFields},
		{cons.Styles, styleFields},
		{cons.Sizes, sizeFields},
	}
	for _, check := range checks {
		if len(check.values) == 0 {
			continue
		}
		if !matchesAny(r, check.values, check.fields) {
			return false
		}
	}

	if cons.PriceMin != nil || cons.PriceMax != nil {
		price, ok := candidatePrice(r, regionID)
		if !ok {
			return false
		}
		if cons.PriceMin != nil && price < *cons.PriceMin {
			return false
		}
		if cons.PriceMax != nil && price > *cons.PriceMax {
			return false
		}
	}

	return true
}

// matchesAny reports whether any requested value appears, case-insensitively,
// in any of the given stored fields.
func matchesAny(r *result.Result, values, fields []string) bool {
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(r.Field(f)), v) {
				return true
			}
		}
	}
	return false
}

// candidatePrice returns the price a range constraint is checked against:
// the region minimum when a region was requested and indexed, otherwise
// the default price.
func candidatePrice(r *result.Result, regionID string) (int64, bool) {
	if regionID != "" {
		if v := r.Field(document.RegionPriceField(regionID)); v != "" {
			if p, err := strconv.ParseInt(v, 10, 64); err == nil {
				return p, true
			}
		}
	}
	v := r.Field(document.FieldDefaultPrice)
	if v == "" {
		return 0, false
	}
	p, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
