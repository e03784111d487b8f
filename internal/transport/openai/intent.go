package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
)

const intentPrompt = "You extract shopping constraints from a product " +
	"search query. Respond with JSON only, using this shape and omitting " +
	"fields the query does not mention: " +
	`{"colors":[],"materials":[],"categories":[],"styles":[],"sizes":[],` +
	`"price_min":0,"price_max":0}. ` +
	"Prices are integers in minor currency units (cents). Do not guess."

// Extract derives structured constraints from a free-text query via a
// JSON-mode chat completion.
func (c *Client) Extract(ctx context.Context, query string) (intent.Intent, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return intent.Intent{}, parseAPIError("intent", err)
	}
	if len(resp.Choices) == 0 {
		return intent.Intent{}, fmt.Errorf("empty intent response: %w", domain.ErrUpstreamUnavailable)
	}

	var parsed struct {
		Colors     []string `json:"colors"`
		Materials  []string `json:"materials"`
		Categories []string `json:"categories"`
		Styles     []string `json:"styles"`
		Sizes      []string `json:"sizes"`
		PriceMin   *int64   `json:"price_min"`
		PriceMax   *int64   `json:"price_max"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return intent.Intent{}, fmt.Errorf("parse intent response: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	cons := intent.Constraints{
		Colors:     parsed.Colors,
		Materials:  parsed.Materials,
		Categories: parsed.Categories,
		Styles:     parsed.Styles,
		Sizes:      parsed.Sizes,
	}
	// The model emits 0 for "not mentioned"; treat it as unset.
	if parsed.PriceMin != nil && *parsed.PriceMin > 0 {
		cons.PriceMin = parsed.PriceMin
	}
	if parsed.PriceMax != nil && *parsed.PriceMax > 0 {
		cons.PriceMax = parsed.PriceMax
	}

	return intent.Intent{OriginalQuery: query, Constraints: cons}, nil
}
