package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/odvcencio/uplift/pkg/browser"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

// Experiment pipeline step names. Stable across releases: journaled markers
// are keyed by these, so renaming one re-runs the step on old pipelines.
const (
	stepInitRepo            = "init-repo"
	stepSpawnBrowserAgent   = "spawn-browser-agent"
	stepAnalyzeResults      = "analyze-browser-results"
	stepGenerateSuggestions = "generate-variant-suggestions"
	stepTriggerVariants     = "trigger-variant-implementations"
)

type initRepoOutput struct {
	SandboxID string `json:"sandboxId"`
	PublicURL string `json:"publicUrl"`
	VariantID string `json:"variantId"`
}

type browserRunOutput struct {
	AgentID string `json:"agentId"`
	TaskID  string `json:"taskId"`
}

// RunExperiment executes the control pipeline for one experiment: provision
// the repository, run a simulated user against it, analyze the session, and
// queue an implementation job for the generated suggestion. Safe to call
// again after a crash; completed steps are skipped.
func (o *Orchestrator) RunExperiment(ctx context.Context, job RunExperimentJob) error {
	exp, err := o.store.GetExperiment(job.ExperimentID)
	if err != nil {
		return err
	}
	if exp.Status.IsTerminal() {
		return nil
	}
	if exp.Status == experiment.StatusPending {
		if err := o.store.SetExperimentStatus(exp.ID, experiment.StatusRunning); err != nil {
			return err
		}
		metricExperimentsStarted.Inc()
		o.hub.Publish(telemetry.Event{
			Type:         telemetry.EventExperimentStarted,
			ExperimentID: exp.ID,
		})
	}

	p := NewPipeline(exp.ID, exp.ID, o.steps, o.hub, o.logger)
	if err := o.runExperimentSteps(ctx, p, exp); err != nil {
		metricExperimentsFailed.Inc()
		if failErr := o.store.FailExperiment(exp.ID, err.Error()); failErr != nil {
			o.logger.Error(logging.CategoryExperiment, "experiment_fail_mark", exp.ID, map[string]any{
				"error": failErr.Error(),
			})
		}
		o.hub.Publish(telemetry.Event{
			Type:         telemetry.EventExperimentFailed,
			ExperimentID: exp.ID,
			Data:         map[string]any{"error": err.Error()},
		})
		return err
	}

	if err := o.store.SetExperimentStatus(exp.ID, experiment.StatusCompleted); err != nil {
		return err
	}
	metricExperimentsCompleted.Inc()
	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventExperimentCompleted,
		ExperimentID: exp.ID,
	})
	o.logger.Info(logging.CategoryExperiment, "experiment_completed", exp.ID, nil)
	return nil
}

func (o *Orchestrator) runExperimentSteps(ctx context.Context, p *Pipeline, exp *experiment.Experiment) error {
	init, err := RunStep(ctx, p, stepInitRepo, func(ctx context.Context) (initRepoOutput, error) {
		return o.initControlVariant(ctx, exp)
	})
	if err != nil {
		return err
	}

	run, err := RunStep(ctx, p, stepSpawnBrowserAgent, func(ctx context.Context) (browserRunOutput, error) {
		return o.spawnBrowserAgent(ctx, exp, init)
	})
	if err != nil {
		return err
	}

	analysis, err := RunStep(ctx, p, stepAnalyzeResults, func(ctx context.Context) (*experiment.Analysis, error) {
		return o.analyzeBrowserRun(ctx, exp, init.VariantID, run)
	})
	if err != nil {
		return err
	}

	suggestions, err := RunStep(ctx, p, stepGenerateSuggestions, func(ctx context.Context) ([]string, error) {
		return o.generateSuggestions(ctx, exp, analysis)
	})
	if err != nil {
		return err
	}

	_, err = RunStep(ctx, p, stepTriggerVariants, func(ctx context.Context) (int, error) {
		return o.triggerImplementations(ctx, exp, suggestions)
	})
	return err
}

func (o *Orchestrator) initControlVariant(ctx context.Context, exp *experiment.Experiment) (initRepoOutput, error) {
	prov, err := o.provisioner.InitRepository(ctx, exp.RepoURL, nil)
	if err != nil {
		return initRepoOutput{}, err
	}

	variant, err := o.store.CreateVariant(exp.ID, prov.SandboxID, prov.PublicURL, experiment.VariantControl, nil)
	if err != nil {
		return initRepoOutput{}, err
	}

	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventVariantProvisioned,
		ExperimentID: exp.ID,
		VariantID:    variant.ID,
		Data:         map[string]any{"publicUrl": prov.PublicURL, "type": string(experiment.VariantControl)},
	})
	return initRepoOutput{
		SandboxID: prov.SandboxID,
		PublicURL: prov.PublicURL,
		VariantID: variant.ID,
	}, nil
}

// spawnBrowserAgent kicks off the simulated user session and returns as soon
// as the task is live. The wait belongs to the analysis step so a crash mid
// session resumes against the journaled task instead of spawning another
// agent.
func (o *Orchestrator) spawnBrowserAgent(ctx context.Context, exp *experiment.Experiment, init initRepoOutput) (browserRunOutput, error) {
	prompt, err := o.ai.GenerateBrowserTaskPrompt(ctx, exp.Goal, init.PublicURL)
	if err != nil {
		return browserRunOutput{}, err
	}

	agent, err := o.store.CreateAgent(exp.ID, init.VariantID, prompt)
	if err != nil {
		return browserRunOutput{}, err
	}

	task, err := o.browser.CreateTask(ctx, prompt, init.PublicURL)
	if err != nil {
		return browserRunOutput{}, err
	}
	if err := o.store.StartAgent(agent.ID, task.ID, task.LiveURL); err != nil {
		return browserRunOutput{}, err
	}
	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventAgentStarted,
		ExperimentID: exp.ID,
		VariantID:    init.VariantID,
		Data:         map[string]any{"agentId": agent.ID, "liveUrl": task.LiveURL},
	})

	return browserRunOutput{AgentID: agent.ID, TaskID: task.ID}, nil
}

func (o *Orchestrator) analyzeBrowserRun(ctx context.Context, exp *experiment.Experiment, variantID string, run browserRunOutput) (*experiment.Analysis, error) {
	final, err := o.browser.WaitForTask(ctx, run.TaskID)
	if err != nil {
		if finishErr := o.store.FinishAgent(run.AgentID, experiment.StatusFailed, nil, ""); finishErr != nil {
			o.logger.Error(logging.CategoryAgent, "agent_fail_mark", run.AgentID, map[string]any{
				"error": finishErr.Error(),
			})
		}
		return nil, err
	}

	logs, err := o.browser.GetTaskLogs(ctx, run.TaskID)
	if err != nil || strings.TrimSpace(logs) == "" {
		// The session transcript is nice to have; the task output is enough
		// for the analysis when the log download is unavailable.
		logs = final.Output
	}

	analysis, err := o.ai.AnalyzeBrowserLogs(ctx, logs, exp.Goal)
	if err != nil {
		return nil, err
	}

	// A stopped browser task never finished the assignment, so the agent is
	// recorded as failed even when the partial session still yields analysis.
	status := experiment.StatusFailed
	if final.Status == browser.TaskStatusFinished {
		status = experiment.StatusCompleted
	}

	result := &experiment.AgentResult{
		Success:  analysis.Success,
		Summary:  analysis.Summary,
		Insights: joinList(analysis.Insights),
		Issues:   joinList(analysis.Issues),
	}
	if err := o.store.FinishAgent(run.AgentID, status, result, logs); err != nil {
		return nil, err
	}
	if err := o.store.SetVariantAnalysis(variantID, analysis); err != nil {
		return nil, err
	}

	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventAgentFinished,
		ExperimentID: exp.ID,
		VariantID:    variantID,
		Data:         map[string]any{"agentId": run.AgentID, "status": string(status)},
	})
	return analysis, nil
}

func (o *Orchestrator) generateSuggestions(ctx context.Context, exp *experiment.Experiment, analysis *experiment.Analysis) ([]string, error) {
	suggestions, err := o.ai.GenerateVariantSuggestions(ctx, analysis, exp.Goal)
	if err != nil {
		return nil, err
	}
	if err := o.store.SetVariantSuggestions(exp.ID, suggestions); err != nil {
		return nil, err
	}

	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventSuggestionGenerated,
		ExperimentID: exp.ID,
		Data:         map[string]any{"count": len(suggestions)},
	})
	return suggestions, nil
}

func (o *Orchestrator) triggerImplementations(ctx context.Context, exp *experiment.Experiment, suggestions []string) (int, error) {
	for i, suggestion := range suggestions {
		payload, err := json.Marshal(ImplementVariantJob{
			ExperimentID: exp.ID,
			RepoURL:      exp.RepoURL,
			Goal:         exp.Goal,
			Suggestion:   suggestion,
			Index:        i,
		})
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode variant job")
		}
		if err := o.variants.Push(ctx, payload); err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue variant implementation").
				WithContext("experiment_id", exp.ID)
		}
	}
	return len(suggestions), nil
}

func joinList(items []string) string {
	return strings.Join(items, "\n- ")
}
