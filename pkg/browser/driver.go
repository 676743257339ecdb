// Package browser talks to the simulated-user automation provider. A task is
// a natural-language instruction run against a start URL; the provider
// records the session and exposes its status and logs for polling.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/poll"
)

// Task statuses reported by the provider. Finished and stopped are the
// terminal states; anything else means the session is still going.
const (
	TaskStatusCreated  = "created"
	TaskStatusRunning  = "running"
	TaskStatusFinished = "finished"
	TaskStatusStopped  = "stopped"
)

// Task is one simulated-user browsing session.
type Task struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	LiveURL string `json:"live_url,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusFinished || t.Status == TaskStatusStopped
}

// Driver is a raw HTTP client for the browser automation API.
type Driver struct {
	apiKey       string
	baseURL      string
	maxWait      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
}

// NewDriver builds a driver from configuration.
func NewDriver(cfg config.BrowserConfig) *Driver {
	return &Driver{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		maxWait:      cfg.MaxWait,
		pollInterval: cfg.PollInterval,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// CreateTask launches a browsing session for the given instruction.
func (d *Driver) CreateTask(ctx context.Context, instruction, startURL string) (*Task, error) {
	payload := map[string]any{
		"task":      instruction,
		"start_url": startURL,
	}

	var task Task
	if err := d.do(ctx, "POST", "/run-task", payload, &task); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to create browser task")
	}
	if task.ID == "" {
		return nil, apperrors.New(apperrors.ErrCodeBrowserTask, "browser provider returned no task id")
	}
	return &task, nil
}

// GetTask fetches the current state of a task.
func (d *Driver) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := d.do(ctx, "GET", "/task/"+id, nil, &task); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to fetch browser task")
	}
	return &task, nil
}

// WaitForTask polls the task until it reaches a terminal state or the
// configured bound elapses. Each iteration fetches fresh state.
func (d *Driver) WaitForTask(ctx context.Context, id string) (*Task, error) {
	return poll.WaitFor(ctx, poll.Options{
		ResourceID: id,
		Interval:   d.pollInterval,
		MaxWait:    d.maxWait,
	}, func(ctx context.Context) (*Task, error) {
		return d.GetTask(ctx, id)
	}, func(task *Task) bool {
		return task.Terminal()
	})
}

// GetTaskLogs downloads the full session log. The provider hands out a
// one-shot download URL rather than the content itself.
func (d *Driver) GetTaskLogs(ctx context.Context, id string) (string, error) {
	var pointer struct {
		DownloadURL string `json:"download_url"`
	}
	if err := d.do(ctx, "GET", "/task/"+id+"/logs", nil, &pointer); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to fetch log location")
	}
	if pointer.DownloadURL == "" {
		return "", apperrors.New(apperrors.ErrCodeBrowserTask, "browser provider returned no log url")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pointer.DownloadURL, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to build log download request")
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to download session logs")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.New(apperrors.ErrCodeBrowserTask,
			fmt.Sprintf("log download returned status %d", resp.StatusCode))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeBrowserTask, "failed to read session logs")
	}
	return string(raw), nil
}

func (d *Driver) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("browser api %s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(raw), 500))
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
