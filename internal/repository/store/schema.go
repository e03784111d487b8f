package store

import (
	"github.com/opalgrove/catdex/internal/db"
	"github.com/opalgrove/catdex/internal/domain/catalog"
	"github.com/opalgrove/catdex/internal/domain/document"
)

// Index and key layout.
const (
	IndexName = "idx:products"
	KeyPrefix = "product:"
)

// Vector index parameters. HNSW with these settings keeps recall high at
// catalog sizes (tens of thousands of products) without blowing up memory.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

// Schema builds the product index definition. Regions contribute the
// dynamic per-region price fields; embedding dimensions come from the
// configured providers.
func Schema(regions []catalog.Region, textDim, imageDim int) *db.IndexDefinition {
	sep := document.ListSeparator

	fields := []db.IndexField{
		{Name: document.FieldTitle, Type: db.IndexFieldText, TextWeight: 2},
		{Name: document.FieldSubtitle, Type: db.IndexFieldText},
		{Name: document.FieldDescription, Type: db.IndexFieldText},
		{Name: document.FieldCategoryPath, Type: db.IndexFieldText},
		{Name: document.FieldVariantTitles, Type: db.IndexFieldText},

		{Name: document.FieldHandle, Type: db.IndexFieldTag},
		{Name: document.FieldStatus, Type: db.IndexFieldTag},
		{Name: document.FieldCategoryIDs, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldCategoryNames, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldCategoryParentID, Type: db.IndexFieldTag},
		{Name: document.FieldCollectionIDs, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldCollectionNames, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldTagIDs, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldTagValues, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldOptionNames, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldOptionValues, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldVariantSKUs, Type: db.IndexFieldTag, TagSeparator: sep},
		{Name: document.FieldDefaultCurrency, Type: db.IndexFieldTag},

		{Name: document.FieldCategoryLevel, Type: db.IndexFieldNumeric},
		{Name: document.FieldVariantCount, Type: db.IndexFieldNumeric},
		{Name: document.FieldMinPrice, Type: db.IndexFieldNumeric},
		{Name: document.FieldMaxPrice, Type: db.IndexFieldNumeric},
		{Name: document.FieldDefaultPrice, Type: db.IndexFieldNumeric},
	}

	for _, key := range document.FacetKeys {
		fields = append(fields, db.IndexField{
			Name: document.FacetField(key), Type: db.IndexFieldTag,
		})
	}

	for _, r := range regions {
		fields = append(fields,
			db.IndexField{Name: document.RegionPriceField(r.ID), Type: db.IndexFieldNumeric},
			db.IndexField{Name: document.RegionCurrencyField(r.ID), Type: db.IndexFieldTag},
		)
	}

	if textDim > 0 {
		fields = append(fields, db.IndexField{
			Name: document.FieldTextEmbedding, Type: db.IndexFieldVector,
			VectorAlgo: db.VectorHNSW, VectorDim: textDim,
			VectorDistance: db.DistanceCosine,
			VectorM:        hnswM, VectorEFConstruct: hnswEFConstruct,
		})
	}
	if imageDim > 0 {
		fields = append(fields, db.IndexField{
			Name: document.FieldImageEmbedding, Type: db.IndexFieldVector,
			VectorAlgo: db.VectorHNSW, VectorDim: imageDim,
			VectorDistance: db.DistanceCosine,
			VectorM:        hnswM, VectorEFConstruct: hnswEFConstruct,
		})
	}

	return &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{KeyPrefix},
		Fields:   fields,
	}
}

// KeywordSearchFields are the TEXT fields keyword queries run over.
// Order has no effect on scoring; weights live in the schema.
var KeywordSearchFields = []string{
	document.FieldTitle, document.FieldSubtitle, document.FieldDescription,
	document.FieldCategoryPath, document.FieldVariantTitles,
}

// ReturnFields are the stored fields fetched with every search hit.
// Embeddings are deliberately excluded, they are large and useless to
// callers.
var ReturnFields = buildReturnFields()

func buildReturnFields() []string {
	fields := []string{
		document.FieldTitle, document.FieldSubtitle, document.FieldDescription,
		document.FieldHandle, document.FieldThumbnail, document.FieldStatus,
		document.FieldCategoryIDs, document.FieldCategoryNames, document.FieldCategoryPath,
		document.FieldCollectionIDs, document.FieldCollectionNames, document.FieldTagValues,
		document.FieldOptionNames, document.FieldOptionValues,
		document.FieldVariantCount, document.FieldVariantSKUs,
		document.FieldMinPrice, document.FieldMaxPrice,
		document.FieldDefaultPrice, document.FieldDefaultCurrency,
		document.FieldMetadata, document.FieldCreatedAt, document.FieldUpdatedAt,
	}
	for _, key := range document.FacetKeys {
		fields = append(fields, document.FacetField(key))
	}
	return fields
}
