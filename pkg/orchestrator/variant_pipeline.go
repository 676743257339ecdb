package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/odvcencio/uplift/pkg/codeagent"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

// Variant pipeline step names. Same stability rule as the experiment steps.
const (
	stepCreateVariantSandbox = "create-variant-sandbox"
	stepCreateVariantEntity  = "create-variant-entity"
	stepCreateCodeAgent      = "create-code-agent"
	stepSpawnClaudeAgent     = "spawn-claude-agent"
	stepMonitorImplement     = "monitor-implementation"
)

type variantSandboxOutput struct {
	SandboxID string `json:"sandboxId"`
	PublicURL string `json:"publicUrl"`
}

type codeAgentOutput struct {
	CodeAgentID string `json:"codeAgentId"`
	Prompt      string `json:"prompt"`
}

// ImplementVariant executes the variant pipeline for one suggestion: a fresh
// sandbox of the same repository, an autonomous coding agent applying the
// change, and a monitor that waits for the agent's callback to land.
func (o *Orchestrator) ImplementVariant(ctx context.Context, job ImplementVariantJob) error {
	pipelineID := fmt.Sprintf("%s/variant/%d", job.ExperimentID, job.Index)
	p := NewPipeline(pipelineID, job.ExperimentID, o.steps, o.hub, o.logger)

	box, err := RunStep(ctx, p, stepCreateVariantSandbox, func(ctx context.Context) (variantSandboxOutput, error) {
		// The coding-agent runtime inside the sandbox authenticates with
		// the Anthropic key, so it rides in on the environment.
		prov, err := o.provisioner.InitRepository(ctx, job.RepoURL, map[string]string{
			"ANTHROPIC_API_KEY": o.cfg.AI.AnthropicAPIKey,
			"EXPERIMENT_ID":     job.ExperimentID,
			"VARIANT_TYPE":      string(experiment.VariantExperiment),
		})
		if err != nil {
			return variantSandboxOutput{}, err
		}
		return variantSandboxOutput{SandboxID: prov.SandboxID, PublicURL: prov.PublicURL}, nil
	})
	if err != nil {
		return err
	}

	variantID, err := RunStep(ctx, p, stepCreateVariantEntity, func(ctx context.Context) (string, error) {
		suggestion := job.Suggestion
		variant, err := o.store.CreateVariant(job.ExperimentID, box.SandboxID, box.PublicURL, experiment.VariantExperiment, &suggestion)
		if err != nil {
			return "", err
		}
		o.hub.Publish(telemetry.Event{
			Type:         telemetry.EventVariantProvisioned,
			ExperimentID: job.ExperimentID,
			VariantID:    variant.ID,
			Data:         map[string]any{"publicUrl": box.PublicURL, "type": string(experiment.VariantExperiment)},
		})
		return variant.ID, nil
	})
	if err != nil {
		return err
	}

	agent, err := RunStep(ctx, p, stepCreateCodeAgent, func(ctx context.Context) (codeAgentOutput, error) {
		prompt := codeagent.BuildImplementationPrompt(job.Goal, job.Suggestion, o.cfg.Sandbox.WorkDir)
		ca, err := o.store.CreateCodeAgent(job.ExperimentID, variantID, box.SandboxID, job.Suggestion, prompt)
		if err != nil {
			return codeAgentOutput{}, err
		}
		return codeAgentOutput{CodeAgentID: ca.ID, Prompt: prompt}, nil
	})
	if err != nil {
		return err
	}

	_, err = RunStep(ctx, p, stepSpawnClaudeAgent, func(ctx context.Context) (string, error) {
		sessionID, err := o.spawner.Spawn(ctx, box.SandboxID, agent.CodeAgentID, agent.Prompt)
		if err != nil {
			return "", err
		}
		if err := o.store.SetCodeAgentSession(agent.CodeAgentID, sessionID); err != nil {
			return "", err
		}
		o.hub.Publish(telemetry.Event{
			Type:         telemetry.EventCodeAgentSpawned,
			ExperimentID: job.ExperimentID,
			VariantID:    variantID,
			Data:         map[string]any{"codeAgentId": agent.CodeAgentID, "sessionId": sessionID},
		})
		return sessionID, nil
	})
	if err != nil {
		o.failCodeAgent(agent.CodeAgentID, err)
		return err
	}

	final, err := RunStep(ctx, p, stepMonitorImplement, func(ctx context.Context) (experiment.Status, error) {
		ca, err := o.monitor.Wait(ctx, agent.CodeAgentID)
		if err != nil {
			return "", err
		}
		return ca.Status, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
			o.failCodeAgent(agent.CodeAgentID, err)
		}
		return err
	}

	recordImplementation(string(final))
	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventCodeAgentFinished,
		ExperimentID: job.ExperimentID,
		VariantID:    variantID,
		Data:         map[string]any{"codeAgentId": agent.CodeAgentID, "status": string(final)},
	})
	o.logger.Info(logging.CategoryCodeAgent, "implementation_finished", agent.CodeAgentID, map[string]any{
		"variant_id": variantID,
		"status":     string(final),
	})

	if final == experiment.StatusFailed {
		return apperrors.New(apperrors.ErrCodeInternal, "implementation run failed").
			WithContext("code_agent_id", agent.CodeAgentID)
	}
	return nil
}

// failCodeAgent marks an agent failed after a pipeline error. Best effort:
// the runner may have already reported a terminal state, in which case the
// transition is rejected and the reported state wins.
func (o *Orchestrator) failCodeAgent(codeAgentID string, cause error) {
	status := experiment.StatusFailed
	message := cause.Error()
	now := time.Now().UTC()
	_, err := o.store.ApplyCodeAgentUpdate(codeAgentID, experiment.CodeAgentUpdate{
		Status:       &status,
		CompletedAt:  &now,
		ErrorMessage: &message,
	})
	if err != nil {
		o.logger.Warn(logging.CategoryCodeAgent, "code_agent_fail_mark", codeAgentID, map[string]any{
			"error": err.Error(),
		})
	} else {
		recordImplementation(string(experiment.StatusFailed))
	}
}
