package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/observe"
)

// Service turns pipeline inputs into generated text: an exploratory task
// prompt, a structured session analysis, and a single improvement suggestion.
type Service struct {
	provider Provider
	recorder *observe.Recorder
	logger   *logging.Logger
}

// NewService wires a provider with optional observability.
func NewService(provider Provider, recorder *observe.Recorder, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{provider: provider, recorder: recorder, logger: logger}
}

// GenerateBrowserTaskPrompt turns a goal and a deployed URL into an
// instruction for the simulated user.
func (s *Service) GenerateBrowserTaskPrompt(ctx context.Context, goal, startURL string) (string, error) {
	prompt := fmt.Sprintf(`You are writing instructions for an automated browser testing agent.

The site under test is deployed at %s. The owner's goal is: %q.

Write a single task instruction telling the agent to explore the site the way
a real user would, exercising the flows most relevant to that goal. The agent
cannot log in to third-party services or spend real money. Respond with the
instruction text only, no preamble.`, startURL, goal)

	text, err := s.generate(ctx, "generate-task-prompt", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AnalyzeBrowserLogs turns a raw session transcript into a structured
// analysis of how the session went relative to the goal.
func (s *Service) AnalyzeBrowserLogs(ctx context.Context, logs, goal string) (*experiment.Analysis, error) {
	prompt := fmt.Sprintf(`You are analyzing the transcript of an automated browsing session.

The session was testing progress toward this goal: %q.

Transcript:
%s

Respond with strict JSON, no prose, matching exactly:
{"success": boolean, "summary": string, "insights": [string], "issues": [string]}`, goal, logs)

	text, err := s.generate(ctx, "analyze-browser-results", prompt)
	if err != nil {
		return nil, err
	}

	var analysis experiment.Analysis
	if err := json.Unmarshal([]byte(stripFences(text)), &analysis); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeParse, "analysis output is not valid json").
			WithContext("output", truncate(text, 1000))
	}
	return &analysis, nil
}

// GenerateVariantSuggestions derives improvement suggestions from an
// analysis. The model is asked for exactly one; whatever shape comes back is
// normalized to at most one non-empty suggestion.
func (s *Service) GenerateVariantSuggestions(ctx context.Context, analysis *experiment.Analysis, goal string) ([]string, error) {
	encoded, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`A browsing session against a web app was analyzed with this result:
%s

The owner's goal is: %q.

Propose exactly ONE concrete, implementable improvement to the app that would
advance the goal. It must be a change a coding agent can make to the app's
source in one session. Respond with strict JSON: an array containing one
string, e.g. ["add a search filter to the product list"].`, encoded, goal)

	text, err := s.generate(ctx, "generate-variant-suggestions", prompt)
	if err != nil {
		return nil, err
	}

	suggestions, err := parseSuggestions(text)
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (s *Service) generate(ctx context.Context, operation, prompt string) (string, error) {
	ctx, finish := s.recorder.Generation(ctx, operation, s.provider.Model())

	text, err := s.provider.Generate(ctx, prompt)
	finish(err)

	if err != nil {
		s.logger.Error(logging.CategoryAI, "generation_failed", operation, map[string]any{
			"model": s.provider.Model(),
		})
		return "", err
	}
	s.logger.Debug(logging.CategoryAI, "generation_completed", operation, map[string]any{
		"model":        s.provider.Model(),
		"output_bytes": len(text),
	})
	return text, nil
}

// parseSuggestions accepts an array of strings, a single JSON string, or an
// object with a "suggestions" key, and normalizes to at most one suggestion.
func parseSuggestions(text string) ([]string, error) {
	cleaned := stripFences(text)

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		var single string
		if err := json.Unmarshal([]byte(cleaned), &single); err == nil {
			list = []string{single}
		} else {
			var wrapped struct {
				Suggestions []string `json:"suggestions"`
			}
			if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil || wrapped.Suggestions == nil {
				return nil, apperrors.New(apperrors.ErrCodeParse, "suggestion output is not valid json").
					WithContext("output", truncate(text, 1000))
			}
			list = wrapped.Suggestions
		}
	}

	var out []string
	for _, item := range list {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
			break
		}
	}
	return out, nil
}

// stripFences removes a markdown code fence wrapper, with or without a
// language tag, that models wrap JSON output in despite instructions.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
