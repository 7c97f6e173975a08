// ABOUTME: Google Gemini generateContent backend for draft generation
// ABOUTME: Alternative provider selected via config, same parsing contract as Anthropic

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
	geminiBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultGeminiModel is used when config does not name one.
	DefaultGeminiModel = "gemini-1.5-flash"
)

// GeminiGenerator generates drafts via the Gemini generateContent API.
type GeminiGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
// An empty model selects DefaultGeminiModel.
func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{
		baseURL:    geminiBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "draft", "provider", "gemini"),
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate builds the prompt, calls generateContent, and parses the reply.
func (g *GeminiGenerator) Generate(ctx context.Context, payload signal.Payload, contact directory.Contact) (Draft, error) {
	reqBody, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildPrompt(payload, contact)}}},
		},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return Draft{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Draft{}, fmt.Errorf("%w: decoding response: %v", ErrGenerationFailed, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Draft{}, fmt.Errorf("%w: no candidates", ErrGenerationFailed)
	}

	return parseResponse(parsed.Candidates[0].Content.Parts[0].Text)
}
