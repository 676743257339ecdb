package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider talks to the Gemini API.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGoogleProvider builds a provider for Gemini.
func NewGoogleProvider(apiKey, baseURL, model string) *GoogleProvider {
	if baseURL == "" {
		baseURL = googleBaseURL
	}
	return &GoogleProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Model returns the configured model identifier.
func (p *GoogleProvider) Model() string {
	return p.model
}

type googleRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

// Generate runs one generateContent request.
func (p *GoogleProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload := googleRequest{
		Contents: []googleContent{
			{Role: "user", Parts: []googlePart{{Text: prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeAIGeneration, "google request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(apperrors.ErrCodeAIGeneration,
			fmt.Sprintf("google request failed: %s", resp.Status))
	}

	var genResp googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeAIGeneration, "failed to decode google response")
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.New(apperrors.ErrCodeAIGeneration, "google returned no candidates")
	}

	var sb strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
