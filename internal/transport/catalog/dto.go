package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/opalgrove/catdex/internal/domain/catalog"
)

// productJSON mirrors the backend's product payload.
type productJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Handle      string `json:"handle"`
	Thumbnail   string `json:"thumbnail"`
	Status      string `json:"status"`
	Collection  *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"collection"`
	Categories []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Tags []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"tags"`
	Options []struct {
		Title  string `json:"title"`
		Values []struct {
			Value string `json:"value"`
		} `json:"values"`
	} `json:"options"`
	Variants []struct {
		ID    string `json:"id"`
		SKU   string `json:"sku"`
		Title string `json:"title"`
	} `json:"variants"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p productJSON) toDomain() catalog.Product {
	out := catalog.Product{
		ID:          p.ID,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Description: p.Description,
		Handle:      p.Handle,
		Thumbnail:   p.Thumbnail,
		Status:      p.Status,
		Metadata:    stringMetadata(p.Metadata),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Collection != nil {
		out.CollectionID = p.Collection.ID
		out.CollectionTitle = p.Collection.Title
	}
	for _, c := range p.Categories {
		if c.ID == "" {
			continue
		}
		out.Categories = append(out.Categories, catalog.CategoryRef{ID: c.ID, Name: c.Name})
	}
	for _, t := range p.Tags {
		out.Tags = append(out.Tags, catalog.Tag{ID: t.ID, Value: t.Value})
	}
	for _, o := range p.Options {
		opt := catalog.Option{Title: o.Title}
		for _, v := range o.Values {
			opt.Values = append(opt.Values, catalog.OptionValue{Value: v.Value})
		}
		out.Options = append(out.Options, opt)
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, catalog.Variant{ID: v.ID, SKU: v.SKU, Title: v.Title})
	}
	return out
}

// stringMetadata flattens backend metadata to strings. Scalars are
// rendered; nested objects and arrays are dropped.
func stringMetadata(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64, bool:
			out[k] = strings.TrimSpace(fmt.Sprint(val))
		}
	}
	return out
}
