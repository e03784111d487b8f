package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/search/intent"
)

const labelPrompt = "Identify what this product photo shows. Respond with " +
	`JSON only: {"labels":[{"label":"...","confidence":0.0}]} where label is ` +
	"a short lowercase noun or attribute (product type, color, material, " +
	"style) and confidence is between 0 and 1. At most 10 labels."

// DetectLabels names what a query image depicts, with confidences.
func (c *Client) DetectLabels(ctx context.Context, image []byte) ([]intent.Label, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: labelPrompt},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: imageDataURL(image), Detail: openai.ImageURLDetailLow},
				},
			},
		}},
	})
	if err != nil {
		return nil, parseAPIError("vision", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty vision response: %w", domain.ErrUpstreamUnavailable)
	}

	var parsed struct {
		Labels []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"labels"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("parse label response: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	labels := make([]intent.Label, 0, len(parsed.Labels))
	for _, l := range parsed.Labels {
		if l.Label == "" {
			continue
		}
		labels = append(labels, intent.Label{Label: l.Label, Confidence: l.Confidence})
	}
	return labels, nil
}
