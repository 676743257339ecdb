package experiment

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "uplift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB())
}

func TestExperimentLifecycle(t *testing.T) {
	store := newTestStore(t)

	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, exp.Status)
	assert.Empty(t, exp.VariantSuggestions)

	require.NoError(t, store.SetExperimentStatus(exp.ID, StatusRunning))
	require.NoError(t, store.SetVariantSuggestions(exp.ID, []string{"add filters"}))
	require.NoError(t, store.SetExperimentStatus(exp.ID, StatusCompleted))

	got, err := store.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, []string{"add filters"}, got.VariantSuggestions)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	store := newTestStore(t)

	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)

	// pending cannot jump straight to completed
	err = store.SetExperimentStatus(exp.ID, StatusCompleted)
	require.Error(t, err)

	require.NoError(t, store.SetExperimentStatus(exp.ID, StatusRunning))
	require.NoError(t, store.SetExperimentStatus(exp.ID, StatusFailed))

	// terminal states are immutable
	err = store.SetExperimentStatus(exp.ID, StatusRunning)
	require.Error(t, err)
	err = store.SetExperimentStatus(exp.ID, StatusCompleted)
	require.Error(t, err)

	got, err := store.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestFailExperimentRecordsReason(t *testing.T) {
	store := newTestStore(t)

	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)
	require.NoError(t, store.FailExperiment(exp.ID, "sandbox provisioning timed out"))

	got, err := store.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "sandbox provisioning timed out", got.ErrorMessage)
}

func TestListExperimentsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
		require.NoError(t, err)
		ids = append(ids, exp.ID)
		time.Sleep(5 * time.Millisecond)
	}

	listed, err := store.ListExperiments(2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, ids[2], listed[0].ID)
	assert.Equal(t, ids[1], listed[1].ID)
}

func TestVariantSuggestionInvariant(t *testing.T) {
	store := newTestStore(t)
	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)

	suggestion := "add filters"
	_, err = store.CreateVariant(exp.ID, "sb-1", "https://u", VariantControl, &suggestion)
	require.Error(t, err, "control variant must not carry a suggestion")

	_, err = store.CreateVariant(exp.ID, "sb-1", "https://u", VariantExperiment, nil)
	require.Error(t, err, "experimental variant requires a suggestion")

	control, err := store.CreateVariant(exp.ID, "sb-1", "https://u", VariantControl, nil)
	require.NoError(t, err)
	assert.Nil(t, control.Suggestion)

	experimental, err := store.CreateVariant(exp.ID, "sb-2", "https://u2", VariantExperiment, &suggestion)
	require.NoError(t, err)
	require.NotNil(t, experimental.Suggestion)
	assert.Equal(t, "add filters", *experimental.Suggestion)
}

func TestVariantAnalysisRoundTrip(t *testing.T) {
	store := newTestStore(t)
	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)
	v, err := store.CreateVariant(exp.ID, "sb-1", "https://u", VariantControl, nil)
	require.NoError(t, err)

	require.NoError(t, store.SetVariantAnalysis(v.ID, &Analysis{
		Success:  true,
		Summary:  "ok",
		Insights: []string{"a"},
		Issues:   []string{"b"},
	}))

	got, err := store.GetVariant(v.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
	assert.True(t, got.Analysis.Success)
	assert.Equal(t, "ok", got.Analysis.Summary)
	assert.Equal(t, []string{"a"}, got.Analysis.Insights)
	assert.Equal(t, []string{"b"}, got.Analysis.Issues)
}

func TestCreateVariantRequiresExperiment(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateVariant("e_missing", "sb-1", "https://u", VariantControl, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageWrite))
}

func TestAgentLifecycle(t *testing.T) {
	store := newTestStore(t)
	exp, err := store.CreateExperiment("https://github.com/acme/shop", "raise signups")
	require.NoError(t, err)
	v, err := store.CreateVariant(exp.ID, "sb-1", "https://u", VariantControl, nil)
	require.NoError(t, err)

	a, err := store.CreateAgent(exp.ID, v.ID, "explore the app")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	require.NoError(t, store.StartAgent(a.ID, "bt-1", "https://live.example"))
	require.NoError(t, store.FinishAgent(a.ID, StatusCompleted, &AgentResult{
		Success:  true,
		Summary:  "checkout worked",
		Insights: "fast load",
		Issues:   "none",
	}, "step 1\nstep 2"))

	got, err := store.GetAgent(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "bt-1", got.BrowserTaskID)
	assert.Equal(t, "https://live.example", got.BrowserLiveURL)
	require.NotNil(t, got.Result)
	assert.Equal(t, "checkout worked", got.Result.Summary)
	assert.Equal(t, "step 1\nstep 2", got.RawLogs)

	err = store.FinishAgent(a.ID, StatusRunning, nil, "")
	require.Error(t, err, "finish requires a terminal status")

	byVariant, err := store.ListAgentsByVariant(v.ID)
	require.NoError(t, err)
	require.Len(t, byVariant, 1)

	byExperiment, err := store.ListAgentsByExperiment(exp.ID)
	require.NoError(t, err)
	require.Len(t, byExperiment, 1)
}

func TestApplyCodeAgentUpdatePartial(t *testing.T) {
	store := newTestStore(t)
	fx, err := SeedFixture(store)
	require.NoError(t, err)

	running := StatusRunning
	started := time.Now().UTC().Truncate(time.Second)
	updated, err := store.ApplyCodeAgentUpdate(fx.CodeAgent.ID, CodeAgentUpdate{
		Status:    &running,
		StartedAt: &started,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, updated.Status)
	require.NotNil(t, updated.StartedAt)

	// a later partial payload must not clobber fields it omits
	summary := "added a cart badge"
	updated, err = store.ApplyCodeAgentUpdate(fx.CodeAgent.ID, CodeAgentUpdate{
		ImplementationSummary: &summary,
		FilesModified:         []string{"src/cart.tsx"},
		CodeChanges:           []CodeChange{{File: "src/cart.tsx", Changes: "render badge"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, updated.Status)
	require.NotNil(t, updated.StartedAt)
	assert.Equal(t, "added a cart badge", updated.ImplementationSummary)
	assert.Equal(t, []string{"src/cart.tsx"}, updated.FilesModified)
	require.Len(t, updated.CodeChanges, 1)
	assert.Equal(t, "src/cart.tsx", updated.CodeChanges[0].File)

	completed := StatusCompleted
	finished := started.Add(2 * time.Minute)
	updated, err = store.ApplyCodeAgentUpdate(fx.CodeAgent.ID, CodeAgentUpdate{
		Status:      &completed,
		CompletedAt: &finished,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, "added a cart badge", updated.ImplementationSummary)

	// terminal code agents reject further status changes
	_, err = store.ApplyCodeAgentUpdate(fx.CodeAgent.ID, CodeAgentUpdate{Status: &running})
	require.Error(t, err)
}

func TestApplyCodeAgentUpdateUnknownID(t *testing.T) {
	store := newTestStore(t)
	running := StatusRunning
	_, err := store.ApplyCodeAgentUpdate("ca_missing", CodeAgentUpdate{Status: &running})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestGetMissingRecords(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetExperiment("e_missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	_, err = store.GetVariant("v_missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	_, err = store.GetAgent("a_missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	_, err = store.GetCodeAgent("ca_missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestSeedFixtureLinksRecords(t *testing.T) {
	store := newTestStore(t)
	fx, err := SeedFixture(store)
	require.NoError(t, err)

	assert.Equal(t, fx.Experiment.ID, fx.Control.ExperimentID)
	assert.Equal(t, fx.Control.ID, fx.Agent.VariantID)
	assert.Equal(t, fx.Control.ID, fx.CodeAgent.VariantID)
	assert.Equal(t, VariantControl, fx.Control.Kind)
	assert.Nil(t, fx.Control.Suggestion)
}
