// Package catalog is the HTTP client for the commerce backend the
// indexing pipeline reads from. It implements usecase/indexing.ProductSource.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/catalog"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

// categoryPageSize is the page size used when listing all categories.
const categoryPageSize = 1000

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the commerce backend's admin API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// ListCategories fetches the complete category tree keyed by category ID.
func (c *Client) ListCategories(ctx context.Context) (map[string]catalog.Category, error) {
	categories := make(map[string]catalog.Category)

	for offset := 0; ; offset += categoryPageSize {
		var payload struct {
			Categories []struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				ParentID string `json:"parent_category_id"`
			} `json:"product_categories"`
		}
		query := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(categoryPageSize)},
		}
		if err := c.get(ctx, "/admin/product-categories", query, &payload); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}

		for _, cat := range payload.Categories {
			if cat.ID == "" {
				continue
			}
			categories[cat.ID] = catalog.Category{
				ID: cat.ID, Name: cat.Name, ParentID: cat.ParentID,
			}
		}
		if len(payload.Categories) < categoryPageSize {
			return categories, nil
		}
	}
}

// ListRegions fetches all shopping regions.
func (c *Client) ListRegions(ctx context.Context) ([]catalog.Region, error) {
	var payload struct {
		Regions []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			CurrencyCode string `json:"currency_code"`
		} `json:"regions"`
	}
	if err := c.get(ctx, "/admin/regions", nil, &payload); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	regions := make([]catalog.Region, 0, len(payload.Regions))
	for _, r := range payload.Regions {
		regions = append(regions, catalog.Region{
			ID: r.ID, Name: r.Name, CurrencyCode: r.CurrencyCode,
		})
	}
	return regions, nil
}

// ListProductsPage fetches one page of products.
func (c *Client) ListProductsPage(ctx context.Context, offset, limit int) ([]catalog.Product, error) {
	var payload struct {
		Products []productJSON `json:"products"`
	}
	query := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "/admin/products", query, &payload); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]catalog.Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		products = append(products, p.toDomain())
	}
	return products, nil
}

// ListVariantPrices fetches prices for a batch of variants in one call.
// Prices with a null amount are dropped here so downstream aggregation
// only sees concrete amounts.
func (c *Client) ListVariantPrices(ctx context.Context, variantIDs []string) (map[string][]catalog.Price, error) {
	if len(variantIDs) == 0 {
		return map[string][]catalog.Price{}, nil
	}

	body := map[string][]string{"variant_ids": variantIDs}
	var payload struct {
		Prices map[string][]struct {
			Amount       *int64 `json:"amount"`
			CurrencyCode string `json:"currency_code"`
			RegionID     string `json:"region_id"`
		} `json:"prices"`
	}
	if err := c.post(ctx, "/admin/variant-prices", body, &payload); err != nil {
		return nil, fmt.Errorf("list variant prices: %w", err)
	}

	prices := make(map[string][]catalog.Price, len(payload.Prices))
	for variantID, raw := range payload.Prices {
		list := make([]catalog.Price, 0, len(raw))
		for _, p := range raw {
			if p.Amount == nil {
				continue
			}
			list = append(list, catalog.Price{
				Amount: *p.Amount, CurrencyCode: p.CurrencyCode, RegionID: p.RegionID,
			})
		}
		prices[variantID] = list
	}
	return prices, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s",
			domain.ErrUpstreamUnavailable, req.URL.Path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w",
			domain.ErrUpstreamUnavailable, req.URL.Path, err)
	}
	return nil
}
