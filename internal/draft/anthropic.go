// ABOUTME: Anthropic Messages API backend for draft generation
// ABOUTME: Sends the prompt as a single user message and parses the text reply

package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/signal"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"

	// DefaultAnthropicModel is used when config does not name one.
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
)

// AnthropicGenerator generates drafts via the Anthropic Messages API.
type AnthropicGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicGenerator creates a generator backed by the Anthropic API.
// An empty model selects DefaultAnthropicModel.
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicGenerator{
		baseURL:    anthropicBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "draft", "provider", "anthropic"),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate builds the prompt, calls the Messages API, and parses the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, payload signal.Payload, contact directory.Contact) (Draft, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     g.model,
		MaxTokens: 1024,
		Messages: []anthropicMessage{
			{Role: "user", Content: buildPrompt(payload, contact)},
		},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return Draft{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Draft{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("backend error", "status", resp.StatusCode)
		return Draft{}, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Draft{}, fmt.Errorf("%w: decoding response: %v", ErrGenerationFailed, err)
	}
	if len(parsed.Content) == 0 {
		return Draft{}, fmt.Errorf("%w: no content blocks", ErrGenerationFailed)
	}

	return parseResponse(parsed.Content[0].Text)
}
