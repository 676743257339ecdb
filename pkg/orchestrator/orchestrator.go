// Package orchestrator runs the durable experiment and variant pipelines.
// Jobs arrive over the task bus, every pipeline step is journaled, and a
// restarted worker resumes a half-finished run from its last completed step.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/odvcencio/uplift/pkg/browser"
	"github.com/odvcencio/uplift/pkg/bus"
	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/sandbox"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

const (
	// QueueExperimentRun carries newly submitted experiments.
	QueueExperimentRun = "experiment-run"
	// QueueVariantImplement carries one job per generated suggestion.
	QueueVariantImplement = "variant-implement"
)

// RunExperimentJob is the payload on the experiment queue.
type RunExperimentJob struct {
	ExperimentID string `json:"experimentId"`
}

// ImplementVariantJob is the payload on the variant queue. It carries the
// source data the variant pipeline needs so the job is self-contained.
type ImplementVariantJob struct {
	ExperimentID string `json:"experimentId"`
	RepoURL      string `json:"repoUrl"`
	Goal         string `json:"goal"`
	Suggestion   string `json:"suggestion"`
	Index        int    `json:"index"`
}

// RepoProvisioner turns a repository URL into a running sandboxed deployment.
type RepoProvisioner interface {
	InitRepository(ctx context.Context, repoURL string, extraEnv map[string]string) (*sandbox.Provisioned, error)
}

// BrowserDriver runs a simulated-user session against a deployment.
type BrowserDriver interface {
	CreateTask(ctx context.Context, instruction, startURL string) (*browser.Task, error)
	WaitForTask(ctx context.Context, id string) (*browser.Task, error)
	GetTaskLogs(ctx context.Context, id string) (string, error)
}

// Generator produces task prompts, session analyses, and variant suggestions.
type Generator interface {
	GenerateBrowserTaskPrompt(ctx context.Context, goal, startURL string) (string, error)
	AnalyzeBrowserLogs(ctx context.Context, logs, goal string) (*experiment.Analysis, error)
	GenerateVariantSuggestions(ctx context.Context, analysis *experiment.Analysis, goal string) ([]string, error)
}

// AgentSpawner launches the coding-agent runner inside a sandbox.
type AgentSpawner interface {
	Spawn(ctx context.Context, sandboxID, codeAgentID, implementationPrompt string) (string, error)
}

// AgentMonitor blocks until a code agent reaches a terminal state.
type AgentMonitor interface {
	Wait(ctx context.Context, codeAgentID string) (*experiment.CodeAgent, error)
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Store       *experiment.Store
	Steps       *StepStore
	Provisioner RepoProvisioner
	Browser     BrowserDriver
	AI          Generator
	Spawner     AgentSpawner
	Monitor     AgentMonitor
	Bus         bus.MessageBus
	Hub         *telemetry.Hub
	Logger      *logging.Logger
	Config      *config.Config
}

// Orchestrator dispatches queued jobs to the pipelines.
type Orchestrator struct {
	store       *experiment.Store
	steps       *StepStore
	provisioner RepoProvisioner
	browser     BrowserDriver
	ai          Generator
	spawner     AgentSpawner
	monitor     AgentMonitor
	hub         *telemetry.Hub
	logger      *logging.Logger
	cfg         *config.Config

	experiments bus.TaskQueue
	variants    bus.TaskQueue
	sem         *semaphore.Weighted
	wg          sync.WaitGroup
}

// New wires an orchestrator from its collaborators.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	maxConcurrent := opts.Config.CodeAgent.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultMaxConcurrent
	}
	return &Orchestrator{
		store:       opts.Store,
		steps:       opts.Steps,
		provisioner: opts.Provisioner,
		browser:     opts.Browser,
		ai:          opts.AI,
		spawner:     opts.Spawner,
		monitor:     opts.Monitor,
		hub:         opts.Hub,
		logger:      logger,
		cfg:         opts.Config,
		experiments: opts.Bus.Queue(QueueExperimentRun),
		variants:    opts.Bus.Queue(QueueVariantImplement),
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// SubmitExperiment records a new experiment and queues its pipeline run.
func (o *Orchestrator) SubmitExperiment(ctx context.Context, repoURL, goal string) (*experiment.Experiment, error) {
	exp, err := o.store.CreateExperiment(repoURL, goal)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(RunExperimentJob{ExperimentID: exp.ID})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode experiment job")
	}
	if err := o.experiments.Push(ctx, payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue experiment run").
			WithContext("experiment_id", exp.ID)
	}

	o.hub.Publish(telemetry.Event{
		Type:         telemetry.EventExperimentCreated,
		ExperimentID: exp.ID,
	})
	o.logger.Info(logging.CategoryExperiment, "experiment_submitted", exp.ID, map[string]any{
		"repo_url": repoURL,
		"goal":     goal,
	})
	return exp, nil
}

// Start launches the queue workers. They run until ctx is canceled or the
// bus closes; Wait blocks until every in-flight job finishes.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(2)
	go o.consume(ctx, o.experiments, o.handleExperimentTask)
	go o.consume(ctx, o.variants, o.handleVariantTask)
}

// Wait blocks until the workers and their in-flight jobs have stopped.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) consume(ctx context.Context, queue bus.TaskQueue, handle func(context.Context, []byte) error) {
	defer o.wg.Done()
	for {
		task, err := queue.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, bus.ErrClosed) {
				return
			}
			o.logger.Warn(logging.CategoryWorkflow, "queue_pull_failed", queue.Name(), map[string]any{
				"error": err.Error(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		o.wg.Add(1)
		go func(task *bus.Task) {
			defer o.wg.Done()
			if err := handle(ctx, task.Data); err != nil {
				o.logger.Error(logging.CategoryWorkflow, "job_failed", queue.Name(), map[string]any{
					"task_id": task.ID,
					"error":   err.Error(),
				})
			}
			// Failures are recorded on the entity itself, so the task is
			// acknowledged either way rather than redelivered.
			if err := queue.Ack(ctx, task.ID); err != nil && ctx.Err() == nil {
				o.logger.Warn(logging.CategoryWorkflow, "queue_ack_failed", queue.Name(), map[string]any{
					"task_id": task.ID,
					"error":   err.Error(),
				})
			}
		}(task)
	}
}

func (o *Orchestrator) handleExperimentTask(ctx context.Context, data []byte) error {
	var job RunExperimentJob
	if err := json.Unmarshal(data, &job); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeParse, "failed to decode experiment job")
	}
	return o.RunExperiment(ctx, job)
}

func (o *Orchestrator) handleVariantTask(ctx context.Context, data []byte) error {
	var job ImplementVariantJob
	if err := json.Unmarshal(data, &job); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeParse, "failed to decode variant job")
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "implementation slot never freed")
	}
	defer o.sem.Release(1)

	return o.ImplementVariant(ctx, job)
}
