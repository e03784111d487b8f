// Package document defines the flattened product document and the pure
// transform that builds it from raw catalog records.
package document

import (
	"strings"

	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/hierarchy"
	"github.com/opalgrove/catdex/internal/domain/pricing"
)

// FacetKeys is the whitelist of metadata keys promoted to individual
// meta_<key> facet fields. Everything else stays in the raw metadata blob.
var FacetKeys = []string{"care", "material", "warranty", "assembly", "cover_type", "filling"}

// Document is one indexable product record. It is rebuilt from scratch on
// every full reindex and never mutated in place.
type Document struct {
	ID          string
	Title       string
	Subtitle    string
	Description string
	Handle      string
	Thumbnail   string
	Status      string

	CategoryIDs      []string
	CategoryNames    []string
	CategoryPath     string
	CategoryLevel    int
	CategoryParentID string

	CollectionIDs   []string
	CollectionNames []string
	TagIDs          []string
	TagValues       []string

	OptionNames  []string
	OptionValues []string

	VariantCount  int
	VariantSKUs   []string
	VariantTitles []string

	MinPrice        int64
	MaxPrice        int64
	DefaultPrice    int64
	DefaultCurrency string
	// RegionPrices feeds the dynamically-named price_reg_<id> and
	// currency_reg_<id> index fields. Kept as an explicit map so the
	// document schema stays statically describable.
	RegionPrices map[string]pricing.RegionPrice

	// MetaFacets holds the whitelisted meta_<key> facet fields.
	MetaFacets map[string]string
	// Metadata is the raw metadata blob, retained for display.
	Metadata map[string]string

	CreatedAt string
	UpdatedAt string

	// Embeddings are attached by the pipeline after the transform; the
	// transform itself never performs I/O.
	TextEmbedding  []float32
	ImageEmbedding []float32
}

// HasPrices reports whether any variant price was observed.
func (d *Document) HasPrices() bool { return d.MaxPrice > 0 }

// HasCategories reports whether any category was resolved.
func (d *Document) HasCategories() bool { return d.CategoryLevel >= 0 }

// Transform flattens a product into its indexable document. It is a pure
// function of its inputs: no I/O, no clock, no randomness. Malformed
// category or price data degrades to empty defaults rather than failing.
func Transform(
	p *catalog.Product,
	pricesByVariant map[string][]catalog.Price,
	regions []catalog.Region,
	categories map[string]catalog.Category,
) Document {
	h := hierarchy.Resolve(p.Categories, categories)

	var allPrices []catalog.Price
	for _, v := range p.Variants {
		allPrices = append(allPrices, pricesByVariant[v.ID]...)
	}
	prices := pricing.Aggregate(allPrices, regions)

	doc := Document{
		ID:          p.ID,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Description: p.Description,
		Handle:      p.Handle,
		Thumbnail:   p.Thumbnail,
		Status:      p.Status,

		CategoryIDs:      h.CategoryIDs,
		CategoryNames:    h.CategoryNames,
		CategoryPath:     h.Path,
		CategoryLevel:    h.Level,
		CategoryParentID: h.ParentID,

		MinPrice:        prices.MinPrice,
		MaxPrice:        prices.MaxPrice,
		DefaultPrice:    prices.DefaultPrice,
		DefaultCurrency: prices.DefaultCurrency,
		RegionPrices:    prices.RegionPrices,

		MetaFacets: extractFacets(p.Metadata),
		Metadata:   p.Metadata,
	}

	if doc.Status == "" {
		doc.Status = "draft"
	}
	if p.CollectionID != "" {
		doc.CollectionIDs = []string{p.CollectionID}
	}
	if p.CollectionTitle != "" {
		doc.CollectionNames = []string{p.CollectionTitle}
	}

	for _, t := range p.Tags {
		if t.ID != "" {
			doc.TagIDs = append(doc.TagIDs, t.ID)
		}
		if t.Value != "" {
			doc.TagValues = append(doc.TagValues, t.Value)
		}
	}

	for _, o := range p.Options {
		if o.Title != "" {
			doc.OptionNames = append(doc.OptionNames, o.Title)
		}
		for _, v := range o.Values {
			if v.Value != "" {
				doc.OptionValues = append(doc.OptionValues, v.Value)
			}
		}
	}

	doc.VariantCount = len(p.Variants)
	for _, v := range p.Variants {
		if v.SKU != "" {
			doc.VariantSKUs = append(doc.VariantSKUs, v.SKU)
		}
		if v.Title != "" {
			doc.VariantTitles = append(doc.VariantTitles, v.Title)
		}
	}

	if !p.CreatedAt.IsZero() {
		doc.CreatedAt = p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if !p.UpdatedAt.IsZero() {
		doc.UpdatedAt = p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	return doc
}

// EmbeddingText is the text fed to the embedding provider for this
// document: title, description, category path, and facet values.
func (d *Document) EmbeddingText() string {
	parts := make([]string, 0, 4+len(d.MetaFacets))
	for _, s := range []string{d.Title, d.Subtitle, d.Description, d.CategoryPath} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, key := range FacetKeys {
		if v, ok := d.MetaFacets[FacetField(key)]; ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ". ")
}

// extractFacets promotes whitelisted metadata keys to meta_<key> fields.
// Only non-empty trimmed string values survive.
func extractFacets(metadata map[string]string) map[string]string {
	facets := make(map[string]string)
	for _, key := range FacetKeys {
		v, ok := metadata[key]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		facets[FacetField(key)] = v
	}
	return facets
}
