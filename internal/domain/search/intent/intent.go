// Package intent holds the structured constraints extracted from a
// natural-language query. The extraction itself is an external
// collaborator; this package only models its output.
package intent

// SearchType tags how a query was expressed.
type SearchType string

// Search type values.
const (
	TextOnly   SearchType = "text_only"
	ImageOnly  SearchType = "image_only"
	MixedModal SearchType = "mixed_modal"
)

// Constraints are the structured filters derived from a query or image.
// Nil price bounds mean unbounded. Empty slices impose no restriction.
type Constraints struct {
	Colors     []string
	Materials  []string
	Categories []string
	Styles     []string
	Sizes      []string
	// PriceMin and PriceMax are in minor currency units.
	PriceMin *int64
	PriceMax *int64
}

// IsZero reports whether no constraint field is set.
func (c Constraints) IsZero() bool {
	return len(c.Colors) == 0 && len(c.Materials) == 0 &&
		len(c.Categories) == 0 && len(c.Styles) == 0 && len(c.Sizes) == 0 &&
		c.PriceMin == nil && c.PriceMax == nil
}

// Label is one thing a label detector saw in a query image.
type Label struct {
	Label      string
	Confidence float64
}

// Intent is the structured interpretation of a search query.
type Intent struct {
	OriginalQuery string
	Constraints   Constraints
	SearchType    SearchType
}

// Merge overlays non-empty fields of other onto c and returns the result.
// Query-derived constraints win over image-derived ones.
func (c Constraints) Merge(other Constraints) Constraints {
	out := c
	if len(out.Colors) == 0 {
		out.Colors = other.Colors
	}
	if len(out.Materials) == 0 {
		out.Materials = other.Materials
	}
	if len(out.Categories) == 0 {
		out.Categories = other.Categories
	}
	if len(out.Styles) == 0 {
		out.Styles = other.Styles
	}
	if len(out.Sizes) == 0 {
		out.Sizes = other.Sizes
	}
	if out.PriceMin == nil {
		out.PriceMin = other.PriceMin
	}
	if out.PriceMax == nil {
		out.PriceMax = other.PriceMax
	}
	return out
}
