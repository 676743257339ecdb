package codeagent

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/sandbox"
)

//go:embed runner.js
var runnerScript string

const (
	runnerFileName = "run-agent.js"
	configFileName = "agent-config.json"
	agentRuntime   = "@anthropic-ai/claude-agent-sdk"
	defaultTurns   = 20
)

// runnerConfig is the JSON side file the runner script loads on start. It
// replaces placeholder substitution inside the script itself, so the prompt
// never needs shell escaping.
type runnerConfig struct {
	CodeAgentID string `json:"codeAgentId"`
	CallbackURL string `json:"callbackUrl"`
	Prompt      string `json:"prompt"`
	MaxTurns    int    `json:"maxTurns"`
}

// Spawner materializes the runner inside a sandbox and starts it detached.
type Spawner struct {
	client  *sandbox.Client
	cfg     config.CodeAgentConfig
	workDir string
	logger  *logging.Logger
}

// NewSpawner builds a spawner on top of a sandbox client.
func NewSpawner(client *sandbox.Client, cfg config.CodeAgentConfig, workDir string, logger *logging.Logger) *Spawner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Spawner{client: client, cfg: cfg, workDir: workDir, logger: logger}
}

// Spawn writes the runner script and its config into the sandbox, installs
// the agent runtime, and starts the runner under process supervision with
// restarts disabled. It returns an opaque session handle; completion is
// reported by the runner's HTTP callback, never by this call.
func (s *Spawner) Spawn(ctx context.Context, sandboxID, codeAgentID, implementationPrompt string) (string, error) {
	if s.cfg.CallbackURL == "" {
		return "", apperrors.New(apperrors.ErrCodeConfig, "code agent callback URL is not configured")
	}
	sessionID := uuid.NewString()

	encoded, err := json.Marshal(runnerConfig{
		CodeAgentID: codeAgentID,
		CallbackURL: s.cfg.CallbackURL,
		Prompt:      implementationPrompt,
		MaxTurns:    defaultTurns,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode runner config")
	}

	if err := s.writeFile(ctx, sandboxID, configFileName, encoded); err != nil {
		return "", err
	}
	if err := s.writeFile(ctx, sandboxID, runnerFileName, []byte(runnerScript)); err != nil {
		return "", err
	}

	if _, err := s.client.Exec(ctx, sandboxID, "npm install "+agentRuntime, s.workDir, 3*time.Minute); err != nil {
		return "", err
	}

	processName := "uplift-agent-" + sessionID[:8]
	start := fmt.Sprintf("pm2 start %s --name %s --no-autorestart -- %s",
		runnerFileName, processName, configFileName)
	if _, err := s.client.Exec(ctx, sandboxID, start, s.workDir, time.Minute); err != nil {
		return "", err
	}

	s.logger.Info(logging.CategoryCodeAgent, "agent_spawned", "runner started", map[string]any{
		"code_agent_id": codeAgentID,
		"sandbox_id":    sandboxID,
		"session_id":    sessionID,
		"process_name":  processName,
	})
	return sessionID, nil
}

// writeFile materializes content inside the sandbox. Base64 transport keeps
// arbitrary bytes intact through the shell.
func (s *Spawner) writeFile(ctx context.Context, sandboxID, name string, content []byte) error {
	command := fmt.Sprintf("echo %s | base64 -d > %s",
		base64.StdEncoding.EncodeToString(content), name)
	if _, err := s.client.Exec(ctx, sandboxID, command, s.workDir, time.Minute); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProvision, "failed to write "+name)
	}
	return nil
}
