// Package openaicompat implements ports.Oracle against any server exposing
// an OpenAI-compatible /chat/completions endpoint. It serves both the
// "openai" provider (api.openai.com) and the "llama" provider (a local or
// self-hosted inference gateway), which differ only in base URL, auth, and
// default model.
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/soundsorter/internal/adapters/oracle/transport"
	"github.com/ewilliams-labs/soundsorter/internal/core/ports"
)

var _ ports.Oracle = (*Client)(nil)

const defaultSystemPrompt = "You are a meticulous music librarian who replies with exactly what is asked and nothing else."

// nonStreamTimeout and streamTimeout mirror the original provider's two
// HTTP timeouts: streaming responses trickle in over a slower connection
// and get the longer budget.
const (
	nonStreamTimeout = 120 * time.Second
	streamTimeout    = 300 * time.Second
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	stream     bool
	httpClient *transport.Client
	logger     *zap.Logger
}

// Config configures a Client. BaseURL must not include the
// "/chat/completions" suffix; Client appends it.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string

	// Stream requests the response as server-sent delta chunks instead of
	// a single JSON body, accumulating choices[0].delta.content across
	// chunks. It costs a longer request timeout in exchange for partial
	// output arriving sooner on a slow backend.
	Stream bool

	// OAuth2, when non-nil, is used instead of APIKey: the underlying HTTP
	// client authenticates every request via the client-credentials grant.
	// This serves enterprise inference gateways sitting behind OAuth2
	// rather than a static bearer token.
	OAuth2 *clientcredentials.Config

	Logger *zap.Logger
}

// New builds a Client from cfg, defaulting the underlying HTTP transport to
// the shared retrying client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := nonStreamTimeout
	if cfg.Stream {
		timeout = streamTimeout
	}

	var httpClient *http.Client
	if cfg.OAuth2 != nil {
		httpClient = cfg.OAuth2.Client(context.Background())
		httpClient.Timeout = timeout
	} else {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		stream:     cfg.Stream,
		httpClient: transport.NewClient(httpClient, 0, 0, logger),
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// chatStreamChoice is one SSE chunk's choice: the incremental piece of
// content the server produced since the previous chunk.
type chatStreamChoice struct {
	Delta chatMessage `json:"delta"`
}

type chatStreamChunk struct {
	Choices []chatStreamChoice `json:"choices"`
}

// Generate sends prompt as a single user message and returns the model's
// reply, either decoded from a single JSON body or accumulated across a
// server-sent stream of delta chunks, depending on how the Client was
// configured.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: defaultSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream: c.stream,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openaicompat: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openaicompat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openaicompat: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openaicompat: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if c.stream {
		return c.readStream(resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openaicompat: read response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openaicompat: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openaicompat: response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// readStream accumulates content deltas out of an SSE body, one "data: "
// line per chunk, stopping at the terminal "data: [DONE]" line. Malformed
// chunks are skipped rather than failing the whole generation.
func (c *Client) readStream(body io.Reader) (string, error) {
	var text strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream chunk", zap.Error(err))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		text.WriteString(chunk.Choices[0].Delta.Content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("openaicompat: read stream: %w", err)
	}
	return text.String(), nil
}
