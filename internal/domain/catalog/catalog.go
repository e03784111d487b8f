// Package catalog defines the read-only catalog records consumed by the
// indexing transform. The catalog itself lives elsewhere; these types mirror
// what a ProductSource hands back.
package catalog

import "time"

// Category is a node in the category tree. ParentID is empty for roots.
type Category struct {
	ID       string
	Name     string
	ParentID string
}

// CategoryRef is a category directly assigned to a product.
type CategoryRef struct {
	ID   string
	Name string
}

// Region is a shopping region with its settlement currency.
type Region struct {
	ID           string
	Name         string
	CurrencyCode string
}

// Price is a single variant price in minor currency units.
// A price without RegionID is currency-scoped: it applies to every region
// sharing its currency.
type Price struct {
	Amount       int64
	CurrencyCode string
	RegionID     string
}

// OptionValue is one selectable value of a product option.
type OptionValue struct {
	Value string
}

// Option is a configurable product axis (e.g. Size, Color).
type Option struct {
	Title  string
	Values []OptionValue
}

// Variant is a purchasable variation of a product.
type Variant struct {
	ID    string
	SKU   string
	Title string
}

// Tag is an id/value label attached to a product.
type Tag struct {
	ID    string
	Value string
}

// Product is a raw catalog record prior to the indexing transform.
type Product struct {
	ID              string
	Title           string
	Subtitle        string
	Description     string
	Handle          string
	Thumbnail       string
	Status          string
	CollectionID    string
	CollectionTitle string
	Categories      []CategoryRef
	Tags            []Tag
	Options         []Option
	Variants        []Variant
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VariantIDs returns the IDs of all variants, skipping empty ones.
func (p *Product) VariantIDs() []string {
	ids := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		if v.ID != "" {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
