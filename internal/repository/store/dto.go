package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/opalgrove/catdex/internal/domain/document"
)

// docKey returns the hash key for a product document.
func docKey(id string) string {
	return KeyPrefix + id
}

// docID strips the key prefix back off a search hit key.
func docID(key string) string {
	return strings.TrimPrefix(key, KeyPrefix)
}

// buildHashFields flattens a document into the map[string]string layout
// HSET expects. Empty values are omitted so absent facets stay absent
// from TAG queries instead of matching the empty string.
func buildHashFields(doc *document.Document) map[string]string {
	m := make(map[string]string, 32+len(doc.RegionPrices)+len(doc.MetaFacets))

	setIf(m, document.FieldTitle, doc.Title)
	setIf(m, document.FieldSubtitle, doc.Subtitle)
	setIf(m, document.FieldDescription, doc.Description)
	setIf(m, document.FieldHandle, doc.Handle)
	setIf(m, document.FieldThumbnail, doc.Thumbnail)
	setIf(m, document.FieldStatus, doc.Status)

	sep := document.ListSeparator
	setIf(m, document.FieldCategoryIDs, strings.Join(doc.CategoryIDs, sep))
	setIf(m, document.FieldCategoryNames, strings.Join(doc.CategoryNames, sep))
	setIf(m, document.FieldCategoryPath, doc.CategoryPath)
	m[document.FieldCategoryLevel] = strconv.Itoa(doc.CategoryLevel)
	setIf(m, document.FieldCategoryParentID, doc.CategoryParentID)

	setIf(m, document.FieldCollectionIDs, strings.Join(doc.CollectionIDs, sep))
	setIf(m, document.FieldCollectionNames, strings.Join(doc.CollectionNames, sep))
	setIf(m, document.FieldTagIDs, strings.Join(doc.TagIDs, sep))
	setIf(m, document.FieldTagValues, strings.Join(doc.TagValues, sep))
	setIf(m, document.FieldOptionNames, strings.Join(doc.OptionNames, sep))
	setIf(m, document.FieldOptionValues, strings.Join(doc.OptionValues, sep))

	m[document.FieldVariantCount] = strconv.Itoa(doc.VariantCount)
	setIf(m, document.FieldVariantSKUs, strings.Join(doc.VariantSKUs, sep))
	setIf(m, document.FieldVariantTitles, strings.Join(doc.VariantTitles, sep))

	m[document.FieldMinPrice] = strconv.FormatInt(doc.MinPrice, 10)
	m[document.FieldMaxPrice] = strconv.FormatInt(doc.MaxPrice, 10)
	m[document.FieldDefaultPrice] = strconv.FormatInt(doc.DefaultPrice, 10)
	setIf(m, document.FieldDefaultCurrency, doc.DefaultCurrency)

	for regionID, rp := range doc.RegionPrices {
		m[document.RegionPriceField(regionID)] = strconv.FormatInt(rp.MinPrice, 10)
		setIf(m, document.RegionCurrencyField(regionID), rp.CurrencyCode)
	}

	for field, value := range doc.MetaFacets {
		setIf(m, field, value)
	}
	if len(doc.Metadata) > 0 {
		if raw, err := json.Marshal(doc.Metadata); err == nil {
			m[document.FieldMetadata] = string(raw)
		}
	}

	setIf(m, document.FieldCreatedAt, doc.CreatedAt)
	setIf(m, document.FieldUpdatedAt, doc.UpdatedAt)

	if len(doc.TextEmbedding) > 0 {
		m[document.FieldTextEmbedding] = vectorToBytes(doc.TextEmbedding)
	}
	if len(doc.ImageEmbedding) > 0 {
		m[document.FieldImageEmbedding] = vectorToBytes(doc.ImageEmbedding)
	}

	return m
}

func setIf(m map[string]string, field, value string) {
	if value != "" {
		m[field] = value
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
