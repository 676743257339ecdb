package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	first, stopFirst := hub.Subscribe()
	second, stopSecond := hub.Subscribe()
	defer stopFirst()
	defer stopSecond()

	hub.Publish(Event{Type: EventExperimentStarted, ExperimentID: "e_1"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, EventExperimentStarted, got.Type)
			assert.Equal(t, "e_1", got.ExperimentID)
			assert.False(t, got.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, stop := hub.Subscribe()
	stop()

	_, open := <-ch
	assert.False(t, open)
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	_, stop := hub.Subscribe()
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish(Event{Type: EventStepCompleted, Step: "init-repo"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubAfterClose(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()
	hub.Close()

	_, open := <-ch
	require.False(t, open)

	hub.Publish(Event{Type: EventExperimentFailed})
	late, cancel := hub.Subscribe()
	defer cancel()
	_, open = <-late
	assert.False(t, open)
}

func TestNilHubPublishIsSafe(t *testing.T) {
	var hub *Hub
	hub.Publish(Event{Type: EventAgentStarted})
}
