package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/storage"
	"github.com/odvcencio/uplift/pkg/telemetry"
)

func newTestSteps(t *testing.T) *StepStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "uplift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStepStore(db.DB())
}

func TestStepStore_MarkAndRead(t *testing.T) {
	steps := newTestSteps(t)

	done, _, err := steps.Completed("e_1", "init-repo")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, steps.MarkCompleted("e_1", "init-repo", []byte(`{"sandboxId":"sbx-1"}`)))

	done, output, err := steps.Completed("e_1", "init-repo")
	require.NoError(t, err)
	assert.True(t, done)
	assert.JSONEq(t, `{"sandboxId":"sbx-1"}`, string(output))

	// Same step on a different pipeline is independent.
	done, _, err = steps.Completed("e_2", "init-repo")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStepStore_MarkCompletedIdempotent(t *testing.T) {
	steps := newTestSteps(t)

	require.NoError(t, steps.MarkCompleted("e_1", "init-repo", []byte(`"first"`)))
	require.NoError(t, steps.MarkCompleted("e_1", "init-repo", []byte(`"second"`)))

	_, output, err := steps.Completed("e_1", "init-repo")
	require.NoError(t, err)
	assert.Equal(t, `"first"`, string(output))
}

func TestRunStep_ExecutesOnceAndReplays(t *testing.T) {
	steps := newTestSteps(t)
	p := NewPipeline("e_1", "e_1", steps, telemetry.NewHub(), nil)

	calls := 0
	run := func(ctx context.Context) (string, error) {
		calls++
		return "sbx-7", nil
	}

	out, err := RunStep(context.Background(), p, "provision", run)
	require.NoError(t, err)
	assert.Equal(t, "sbx-7", out)

	out, err = RunStep(context.Background(), p, "provision", run)
	require.NoError(t, err)
	assert.Equal(t, "sbx-7", out)
	assert.Equal(t, 1, calls)
}

func TestRunStep_SkipDecodesJournaledStruct(t *testing.T) {
	steps := newTestSteps(t)
	p := NewPipeline("e_1", "e_1", steps, telemetry.NewHub(), nil)

	type output struct {
		SandboxID string `json:"sandboxId"`
		PublicURL string `json:"publicUrl"`
	}
	want := output{SandboxID: "sbx-1", PublicURL: "https://app.example"}
	encoded, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, steps.MarkCompleted("e_1", "provision", encoded))

	got, err := RunStep(context.Background(), p, "provision", func(ctx context.Context) (output, error) {
		t.Fatal("journaled step must not re-run")
		return output{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunStep_FailureIsNotJournaled(t *testing.T) {
	steps := newTestSteps(t)
	p := NewPipeline("e_1", "e_1", steps, telemetry.NewHub(), nil)

	boom := errors.New("sandbox unavailable")
	_, err := RunStep(context.Background(), p, "provision", func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	// The retry runs the body again and can succeed this time.
	out, err := RunStep(context.Background(), p, "provision", func(ctx context.Context) (string, error) {
		return "sbx-2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sbx-2", out)
}

func TestRunStep_CorruptJournalSurfacesStorageError(t *testing.T) {
	steps := newTestSteps(t)
	p := NewPipeline("e_1", "e_1", steps, telemetry.NewHub(), nil)

	require.NoError(t, steps.MarkCompleted("e_1", "provision", []byte("not json")))

	type output struct {
		SandboxID string `json:"sandboxId"`
	}
	_, err := RunStep(context.Background(), p, "provision", func(ctx context.Context) (output, error) {
		return output{}, nil
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageRead))
}

func TestRunStep_PublishesStepEvents(t *testing.T) {
	steps := newTestSteps(t)
	hub := telemetry.NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	p := NewPipeline("e_1", "e_1", steps, hub, nil)

	_, err := RunStep(context.Background(), p, "provision", func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)

	event := <-events
	assert.Equal(t, telemetry.EventStepCompleted, event.Type)
	assert.Equal(t, "provision", event.Step)
	assert.Equal(t, "e_1", event.PipelineID)

	_, err = RunStep(context.Background(), p, "provision", func(ctx context.Context) (int, error) {
		return 2, nil
	})
	require.NoError(t, err)

	event = <-events
	assert.Equal(t, telemetry.EventStepSkipped, event.Type)
}
