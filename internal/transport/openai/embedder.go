// Package openai adapts an OpenAI-compatible API into the embedding,
// label detection, and intent extraction collaborators the usecases
// consume.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/metrics"
)

// Client wraps an OpenAI-compatible API for embeddings and vision.
type Client struct {
	client      *openai.Client
	model       openai.EmbeddingModel
	visionModel string
	dimensions  int
	user        string
	provider    string
	logger      *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	Dimensions  int
	User        string
	Provider    string
	Logger      *zap.Logger
}

// NewClient creates an OpenAI-compatible provider client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       openai.EmbeddingModel(cfg.Model),
		visionModel: cfg.VisionModel,
		dimensions:  cfg.Dimensions,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// EmbedText vectorizes a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts vectorizes a batch of texts in one API call. The returned
// vectors are in input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          c.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           c.user,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, string(c.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.provider, string(c.model), "api_error").Inc()
		return nil, parseAPIError("embedding", err)
	}
	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, string(c.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(c.provider, string(c.model), "empty_response").Inc()
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrUpstreamUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(c.provider, string(c.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(c.provider, string(c.model)).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(c.provider, string(c.model), "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(c.provider, string(c.model), "total").Add(float64(resp.Usage.TotalTokens))
	}

	// The API may reorder; restore input order by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range: %w",
				d.Index, domain.ErrUpstreamUnavailable)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedImage vectorizes an image by describing it with the vision model
// and embedding the description.
func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	description, err := c.describe(ctx, imageDataURL(image))
	if err != nil {
		return nil, err
	}
	return c.EmbedText(ctx, description)
}

// EmbedImageURL vectorizes a hosted image, used during indexing for
// product thumbnails.
func (c *Client) EmbedImageURL(ctx context.Context, url string) ([]float32, error) {
	description, err := c.describe(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.EmbedText(ctx, description)
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

const describePrompt = "Describe this product photo in one dense sentence " +
	"covering product type, colors, materials, and style. Respond with the " +
	"sentence only."

// describe asks the vision model for a one-sentence product description.
func (c *Client) describe(ctx context.Context, imageRef string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 150,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: describePrompt},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: imageRef, Detail: openai.ImageURLDetailLow},
				},
			},
		}},
	})
	if err != nil {
		return "", parseAPIError("vision", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty vision response: %w", domain.ErrUpstreamUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// imageDataURL encodes raw image bytes as a data URL the vision API
// accepts. The payload is assumed to be JPEG or PNG; the API sniffs the
// actual type from the bytes.
func imageDataURL(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}

// parseAPIError maps provider failures onto domain.ErrUpstreamUnavailable
// so callers can retry transient ones and reject the rest.
func parseAPIError(op string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		if reqErr.HTTPStatusCode == http.StatusBadRequest {
			return fmt.Errorf("%s API rejected request: %s: %w", op, detail, domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%s API error %d: %s: %w",
			op, reqErr.HTTPStatusCode, detail, domain.ErrUpstreamUnavailable)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			op, apiErr.HTTPStatusCode, apiErr.Message, domain.ErrUpstreamUnavailable)
	}

	return fmt.Errorf("%s request failed: %w", op, domain.ErrUpstreamUnavailable)
}

// extractDetail pulls the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
