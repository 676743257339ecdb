package orchestrator

import (
	"context"
	"testing"
	"time"
)

// Temporary diagnostic: replicate TestStart_EndToEndThroughQueues but call
// the handlers directly to surface the swallowed error.
func TestZTmpDiag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	exp, err := h.orch.SubmitExperiment(ctx, "https://github.com/acme/shop", "increase signups")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task, err := h.bus.Queue(QueueExperimentRun).Pull(ctx)
	if err != nil {
		t.Fatalf("pull experiment: %v", err)
	}
	if err := h.orch.handleExperimentTask(ctx, task.Data); err != nil {
		t.Fatalf("handleExperimentTask: %v", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	vtask, err := h.bus.Queue(QueueVariantImplement).Pull(pctx)
	if err != nil {
		t.Fatalf("pull variant: %v", err)
	}
	if err := h.orch.handleVariantTask(ctx, vtask.Data); err != nil {
		t.Fatalf("handleVariantTask: %v", err)
	}

	agents, err := h.store.ListCodeAgentsByExperiment(exp.ID)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	t.Logf("agents=%d", len(agents))
	for _, a := range agents {
		t.Logf("agent status=%s terminal=%v", a.Status, a.Status.IsTerminal())
	}
}
