package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/logging"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

// StepStore persists completed pipeline steps. A pipeline replays from the
// top after a restart; completed steps return their recorded output instead
// of running again, which makes every step effectively run-once.
type StepStore struct {
	db *sql.DB
}

// NewStepStore wraps an open database handle.
func NewStepStore(db *sql.DB) *StepStore {
	return &StepStore{db: db}
}

// Completed returns the recorded output of a step, if it already ran.
func (s *StepStore) Completed(pipelineID, step string) (bool, []byte, error) {
	var output sql.NullString
	err := s.db.QueryRow(`
		SELECT output FROM pipeline_steps WHERE pipeline_id = ? AND step = ?`,
		pipelineID, step).Scan(&output)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to read step marker")
	}
	return true, []byte(output.String), nil
}

// MarkCompleted records a step's output. Idempotent.
func (s *StepStore) MarkCompleted(pipelineID, step string, output []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO pipeline_steps (pipeline_id, step, output, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pipeline_id, step) DO NOTHING`,
		pipelineID, step, string(output), time.Now().UTC())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to record step marker")
	}
	return nil
}

// Pipeline is one durable run identified by a stable id. Step outputs are
// journaled through the StepStore so a resumed run skips finished work.
type Pipeline struct {
	ID           string
	ExperimentID string
	steps        *StepStore
	hub          *telemetry.Hub
	logger       *logging.Logger
}

// NewPipeline builds a pipeline handle for the given stable id.
func NewPipeline(id, experimentID string, steps *StepStore, hub *telemetry.Hub, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{ID: id, ExperimentID: experimentID, steps: steps, hub: hub, logger: logger}
}

// RunStep executes one named step at most once per pipeline. If the step
// already completed, its journaled output is decoded and returned without
// re-running the body. Failures are not journaled, so a retried pipeline
// re-runs the failing step.
func RunStep[T any](ctx context.Context, p *Pipeline, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	done, stored, err := p.steps.Completed(p.ID, name)
	if err != nil {
		return zero, err
	}
	if done {
		var out T
		if len(stored) > 0 {
			if err := json.Unmarshal(stored, &out); err != nil {
				return zero, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to decode journaled step output").
					WithContext("step", name)
			}
		}
		p.hub.Publish(telemetry.Event{
			Type:         telemetry.EventStepSkipped,
			ExperimentID: p.ExperimentID,
			PipelineID:   p.ID,
			Step:         name,
		})
		p.logger.Debug(logging.CategoryWorkflow, "step_skipped", name, map[string]any{
			"pipeline_id": p.ID,
		})
		return out, nil
	}

	out, err := fn(ctx)
	if err != nil {
		recordStepResult(name, "failed")
		p.logger.Error(logging.CategoryWorkflow, "step_failed", name, map[string]any{
			"pipeline_id": p.ID,
			"error":       err.Error(),
		})
		return zero, err
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return zero, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode step output").
			WithContext("step", name)
	}
	if err := p.steps.MarkCompleted(p.ID, name, encoded); err != nil {
		return zero, err
	}

	recordStepResult(name, "completed")
	p.hub.Publish(telemetry.Event{
		Type:         telemetry.EventStepCompleted,
		ExperimentID: p.ExperimentID,
		PipelineID:   p.ID,
		Step:         name,
	})
	p.logger.Info(logging.CategoryWorkflow, "step_completed", name, map[string]any{
		"pipeline_id": p.ID,
	})
	return out, nil
}
