package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/odvcencio/uplift/pkg/config"
	"github.com/odvcencio/uplift/pkg/logging"
)

// Provisioned describes a sandbox that is serving the target application.
type Provisioned struct {
	SandboxID string
	PublicURL string
}

// Provisioner owns the init sequence that turns a repository URL into a
// running dev server.
type Provisioner struct {
	client *Client
	cfg    config.SandboxConfig
	logger *logging.Logger
	// settle gives the dev server a moment to bind before the preview link
	// is requested. Overridable in tests.
	settle time.Duration
}

// NewProvisioner builds a provisioner on top of a sandbox client.
func NewProvisioner(client *Client, cfg config.SandboxConfig, logger *logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Provisioner{
		client: client,
		cfg:    cfg,
		logger: logger,
		settle: 3 * time.Second,
	}
}

// InitRepository creates a sandbox, clones the repository, installs its
// dependencies, starts its dev server under process supervision, and returns
// the public preview URL. extraEnv is injected into the sandbox environment;
// variant sandboxes use it to hand credentials to the coding-agent runtime.
func (p *Provisioner) InitRepository(ctx context.Context, repoURL string, extraEnv map[string]string) (*Provisioned, error) {
	sb, err := p.client.Create(ctx, extraEnv)
	if err != nil {
		return nil, err
	}
	p.logger.Info(logging.CategorySandbox, "sandbox_created", "sandbox created", map[string]any{
		"sandbox_id": sb.ID,
		"repo_url":   repoURL,
	})

	workDir := p.cfg.WorkDir
	steps := []struct {
		name    string
		command string
		cwd     string
		timeout time.Duration
	}{
		{"clone_repository", fmt.Sprintf("git clone %s %s", repoURL, workDir), "", 3 * time.Minute},
		{"install_supervisor", "npm install -g pm2", "", 2 * time.Minute},
		{"install_dependencies", "npm install", workDir, 5 * time.Minute},
		{"start_dev_server", "pm2 start npm --name app -- run dev", workDir, time.Minute},
	}

	for _, step := range steps {
		if _, err := p.client.Exec(ctx, sb.ID, step.command, step.cwd, step.timeout); err != nil {
			p.logger.Error(logging.CategorySandbox, "init_step_failed", step.name, map[string]any{
				"sandbox_id": sb.ID,
				"command":    step.command,
			})
			return nil, err
		}
		p.logger.Debug(logging.CategorySandbox, "init_step_completed", step.name, map[string]any{
			"sandbox_id": sb.ID,
		})
	}

	// Let the dev server bind before exposing it.
	select {
	case <-time.After(p.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	link, err := p.client.Preview(ctx, sb.ID, p.cfg.AppPort)
	if err != nil {
		return nil, err
	}

	p.logger.Info(logging.CategorySandbox, "sandbox_ready", "dev server exposed", map[string]any{
		"sandbox_id": sb.ID,
		"public_url": link.URL,
	})
	return &Provisioned{SandboxID: sb.ID, PublicURL: link.URL}, nil
}

// Client exposes the underlying provider client for callers that need raw
// command execution, such as the coding-agent spawner.
func (p *Provisioner) Client() *Client {
	return p.client
}
