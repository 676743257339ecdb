package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/uplift/pkg/bus"
	"github.com/odvcencio/uplift/pkg/logging"
)

func startRelay(t *testing.T, hub *Hub, b bus.MessageBus, origin string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	relay := NewRelay(hub, b, origin, logging.NewNopLogger())
	go relay.Run(ctx)
	// Give the relay's bus subscription time to register.
	time.Sleep(20 * time.Millisecond)
}

func TestRelayDeliversAcrossProcesses(t *testing.T) {
	shared := bus.NewMemoryBus()
	defer shared.Close()

	hubA := NewHub()
	hubB := NewHub()
	defer hubA.Close()
	defer hubB.Close()

	startRelay(t, hubA, shared, "proc-a")
	startRelay(t, hubB, shared, "proc-b")

	remote, stop := hubB.Subscribe()
	defer stop()

	hubA.Publish(Event{Type: EventExperimentCompleted, ExperimentID: "e_42"})

	select {
	case got := <-remote:
		assert.Equal(t, EventExperimentCompleted, got.Type)
		assert.Equal(t, "e_42", got.ExperimentID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never crossed the bus")
	}
}

func TestRelayDropsOwnMessages(t *testing.T) {
	shared := bus.NewMemoryBus()
	defer shared.Close()

	hub := NewHub()
	defer hub.Close()
	startRelay(t, hub, shared, "proc-solo")

	local, stop := hub.Subscribe()
	defer stop()

	hub.Publish(Event{Type: EventAgentStarted, ExperimentID: "e_1"})

	// The direct hub delivery arrives; the copy coming back off the bus
	// must not.
	select {
	case got := <-local:
		assert.Equal(t, EventAgentStarted, got.Type)
	case <-time.After(time.Second):
		t.Fatal("direct delivery missing")
	}
	select {
	case got := <-local:
		t.Fatalf("event echoed back through the bus: %v", got.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRelayForeignEventIsNotRepublished(t *testing.T) {
	shared := bus.NewMemoryBus()
	defer shared.Close()

	hubA := NewHub()
	hubB := NewHub()
	defer hubA.Close()
	defer hubB.Close()

	startRelay(t, hubA, shared, "proc-a")
	startRelay(t, hubB, shared, "proc-b")

	fromA, stopA := hubA.Subscribe()
	defer stopA()
	fromB, stopB := hubB.Subscribe()
	defer stopB()

	hubA.Publish(Event{Type: EventVariantProvisioned, VariantID: "v_1"})

	require.Eventually(t, func() bool {
		select {
		case <-fromB:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "event should reach the remote hub")

	// Drain A's direct copy, then verify nothing bounces back from B.
	<-fromA
	select {
	case got := <-fromA:
		t.Fatalf("event ping-ponged between relays: %v", got.Type)
	case <-time.After(150 * time.Millisecond):
	}
}
