package observe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/uplift/pkg/config"
)

func TestNewRecorderDisabledWithoutCredentials(t *testing.T) {
	rec, err := NewRecorder(config.ObserveConfig{})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder

	ctx, finish := rec.Generation(context.Background(), "analyze-browser-results", "gemini-2.0-flash-lite")
	assert.NotNil(t, ctx)
	finish(errors.New("boom"))
	finish(nil)

	require.NoError(t, rec.Shutdown(context.Background()))
}

func TestEnabledRecorderTracesGeneration(t *testing.T) {
	rec, err := NewRecorder(config.ObserveConfig{
		APIKey:  "test-key",
		Project: "uplift-dev",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Shutdown(context.Background())

	ctx, finish := rec.Generation(context.Background(), "generate-task-prompt", "gemini-2.0-flash-lite")
	assert.NotNil(t, ctx)
	finish(nil)

	_, finish = rec.Generation(ctx, "generate-variant-suggestions", "gemini-2.0-flash-lite")
	finish(errors.New("generation failed"))
}
