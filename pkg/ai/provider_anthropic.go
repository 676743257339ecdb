package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider calls the Claude Messages API. It backs the same
// Provider interface as Gemini so either vendor can drive generation.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropicProvider builds a provider for Claude.
func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Model returns the configured model identifier.
func (p *AnthropicProvider) Model() string {
	return p.model
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

// Generate runs one messages request.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload := anthropicRequest{
		Model:     p.model,
		MaxTokens: 4096,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeAIGeneration, "anthropic request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(apperrors.ErrCodeAIGeneration,
			fmt.Sprintf("anthropic request failed: %s", resp.Status))
	}

	var genResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeAIGeneration, "failed to decode anthropic response")
	}

	var sb strings.Builder
	for _, block := range genResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", apperrors.New(apperrors.ErrCodeAIGeneration, "anthropic returned no text content")
	}
	return sb.String(), nil
}
