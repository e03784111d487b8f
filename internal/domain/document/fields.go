package document

// Stored field names shared by the index schema, the hash DTO, and the
// constraint filter. Per-region price fields are derived with
// RegionPriceField / RegionCurrencyField.
const (
	FieldTitle            = "title"
	FieldSubtitle         = "subtitle"
	FieldDescription      = "description"
	FieldHandle           = "handle"
	FieldThumbnail        = "thumbnail"
	FieldStatus           = "status"
	FieldCategoryIDs      = "category_ids"
	FieldCategoryNames    = "category_names"
	FieldCategoryPath     = "category_path"
	FieldCategoryLevel    = "category_level"
	FieldCategoryParentID = "parent_category_id"
	FieldCollectionIDs    = "collection_ids"
	FieldCollectionNames  = "collection_names"
	FieldTagIDs           = "tag_ids"
	FieldTagValues        = "tag_values"
	FieldOptionNames      = "option_names"
	FieldOptionValues     = "option_values"
	FieldVariantCount     = "variant_count"
	FieldVariantSKUs      = "variant_skus"
	FieldVariantTitles    = "variant_titles"
	FieldMinPrice         = "min_price"
	FieldMaxPrice         = "max_price"
	FieldDefaultPrice     = "default_price"
	FieldDefaultCurrency  = "default_currency"
	FieldMetadata         = "metadata"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
	FieldTextEmbedding    = "text_embedding"
	FieldImageEmbedding   = "image_embedding"
)

// ListSeparator joins multi-valued fields into a single stored value.
const ListSeparator = "|"

// FacetField returns the stored field name for a whitelisted metadata key.
func FacetField(key string) string { return "meta_" + key }

// RegionPriceField returns the field holding a region's minimum price.
func RegionPriceField(regionID string) string { return "price_reg_" + regionID }

// RegionCurrencyField returns the field holding a region's currency code.
func RegionCurrencyField(regionID string) string { return "currency_reg_" + regionID }
