// Package gemini implements ports.Oracle against Google's GenAI API.
package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

var _ ports.Oracle = (*Client)(nil)

// Client generates text completions via the GenAI SDK.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// New builds a Client, defaulting model to "gemini-1.5-pro" when empty.
func New(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{client: client, model: model, logger: logger}, nil
}

// Generate sends prompt as a single user-role content and returns the
// response's combined text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		c.logger.Warn("gemini generate failed", zap.Error(err))
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: response had no text")
	}
	return text, nil
}
