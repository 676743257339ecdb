package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesSchema(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "uplift.db"))
	require.NoError(t, err)
	defer store.Close()

	rows, err := store.DB().Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables[name] = true
	}
	require.NoError(t, rows.Err())

	for _, want := range []string{"experiments", "variants", "agents", "code_agents", "pipeline_steps"} {
		require.True(t, tables[want], "missing table %s", want)
	}
}

func TestNewEnforcesForeignKeys(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "uplift.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.DB().Exec(`
		INSERT INTO variants (id, experiment_id, sandbox_id, public_url, kind, created_at, updated_at)
		VALUES ('v_x', 'e_missing', 'sb-1', 'https://example.test', 'control', datetime('now'), datetime('now'))`)
	require.Error(t, err)
}

func TestNewReopenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uplift.db")

	store, err := New(path)
	require.NoError(t, err)
	_, err = store.DB().Exec(`
		INSERT INTO experiments (id, repo_url, goal, status, created_at, updated_at)
		VALUES ('e_1', 'https://github.com/acme/shop', 'raise signups', 'pending', datetime('now'), datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	var goal string
	err = reopened.DB().QueryRow("SELECT goal FROM experiments WHERE id = 'e_1'").Scan(&goal)
	require.NoError(t, err)
	require.Equal(t, "raise signups", goal)
}
