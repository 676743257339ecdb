package codeagent

import (
	"context"
	"time"

	"github.com/odvcencio/uplift/pkg/config"
	"github.com/odvcencio/uplift/pkg/experiment"
	"github.com/odvcencio/uplift/pkg/poll"
)

// Monitor waits for a spawned agent to reach a terminal state. Progress is
// observed through the record store, not the sandbox: the runner reports by
// calling back over HTTP, so the store is the only source of truth.
type Monitor struct {
	store    *experiment.Store
	interval time.Duration
	maxWait  time.Duration
}

// NewMonitor builds a monitor over the record store.
func NewMonitor(store *experiment.Store, cfg config.CodeAgentConfig) *Monitor {
	return &Monitor{
		store:    store,
		interval: cfg.PollInterval,
		maxWait:  cfg.MaxWait,
	}
}

// Wait polls until the code agent completes or fails, or the bound elapses.
// A missing record aborts immediately with a not-found error.
func (m *Monitor) Wait(ctx context.Context, codeAgentID string) (*experiment.CodeAgent, error) {
	return poll.WaitFor(ctx, poll.Options{
		ResourceID: codeAgentID,
		Interval:   m.interval,
		MaxWait:    m.maxWait,
	}, func(context.Context) (*experiment.CodeAgent, error) {
		return m.store.GetCodeAgent(codeAgentID)
	}, func(ca *experiment.CodeAgent) bool {
		return ca.Status.IsTerminal()
	})
}
