// Package sandbox talks to the remote sandbox provider and turns a bare
// repository URL into a running dev server with a public preview URL.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
)

const defaultTimeout = 5 * time.Minute

// Sandbox is one remote execution environment.
type Sandbox struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// ExecResult is the outcome of one command run inside a sandbox.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Output   string `json:"result"`
}

// PreviewLink exposes a sandbox port on a public URL.
type PreviewLink struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// Client is a raw HTTP client for the sandbox provider API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a sandbox provider client.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Create provisions a fresh sandbox with the given environment variables.
func (c *Client) Create(ctx context.Context, envVars map[string]string) (*Sandbox, error) {
	payload := map[string]any{}
	if len(envVars) > 0 {
		payload["envVars"] = envVars
	}

	var sb Sandbox
	if err := c.do(ctx, "POST", "/sandbox", payload, &sb); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvision, "failed to create sandbox")
	}
	if sb.ID == "" {
		return nil, apperrors.New(apperrors.ErrCodeProvision, "sandbox provider returned no id")
	}
	return &sb, nil
}

// Get fetches the current state of a sandbox.
func (c *Client) Get(ctx context.Context, id string) (*Sandbox, error) {
	var sb Sandbox
	if err := c.do(ctx, "GET", "/sandbox/"+id, nil, &sb); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvision, "failed to fetch sandbox")
	}
	return &sb, nil
}

// Exec runs a shell command inside the sandbox and waits for it to finish.
// A non-zero exit code is reported as an error carrying the command and its
// output.
func (c *Client) Exec(ctx context.Context, id, command, cwd string, timeout time.Duration) (*ExecResult, error) {
	payload := map[string]any{
		"command": command,
	}
	if cwd != "" {
		payload["cwd"] = cwd
	}
	if timeout > 0 {
		payload["timeout"] = int(timeout.Seconds())
	}

	var result ExecResult
	if err := c.do(ctx, "POST", "/toolbox/"+id+"/process/execute", payload, &result); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvision, "failed to execute sandbox command").
			WithContext("command", command)
	}
	if result.ExitCode != 0 {
		return &result, apperrors.New(apperrors.ErrCodeProvision,
			fmt.Sprintf("command exited with code %d", result.ExitCode)).
			WithContext("command", command).
			WithContext("output", truncate(result.Output, 2000))
	}
	return &result, nil
}

// Preview returns the public URL for a port inside the sandbox.
func (c *Client) Preview(ctx context.Context, id string, port int) (*PreviewLink, error) {
	var link PreviewLink
	path := fmt.Sprintf("/sandbox/%s/ports/%d/preview-url", id, port)
	if err := c.do(ctx, "GET", path, nil, &link); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvision, "failed to fetch preview link")
	}
	if link.URL == "" {
		return nil, apperrors.New(apperrors.ErrCodeProvision, "sandbox provider returned no preview url")
	}
	return &link, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sandbox api %s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(raw), 500))
	}
	if target == nil {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
