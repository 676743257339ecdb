package telemetry

import (
	"sync"
	"time"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventExperimentCreated   EventType = "experiment.created"
	EventExperimentStarted   EventType = "experiment.started"
	EventExperimentCompleted EventType = "experiment.completed"
	EventExperimentFailed    EventType = "experiment.failed"
	EventStepCompleted       EventType = "pipeline.step.completed"
	EventStepSkipped         EventType = "pipeline.step.skipped"
	EventVariantProvisioned  EventType = "variant.provisioned"
	EventAgentStarted        EventType = "agent.started"
	EventAgentFinished       EventType = "agent.finished"
	EventSuggestionGenerated EventType = "suggestion.generated"
	EventCodeAgentSpawned    EventType = "codeagent.spawned"
	EventCodeAgentReported   EventType = "codeagent.reported"
	EventCodeAgentFinished   EventType = "codeagent.finished"
)

// Event describes pipeline progress that API clients can consume live.
type Event struct {
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	ExperimentID string         `json:"experimentId,omitempty"`
	VariantID    string         `json:"variantId,omitempty"`
	PipelineID   string         `json:"pipelineId,omitempty"`
	Step         string         `json:"step,omitempty"`
	Data         map[string]any `json:"data,omitempty"`

	// relayed marks events that arrived from another process over the bus,
	// so the local relay does not send them out again.
	relayed bool
}

// Hub fan-outs telemetry events to any number of subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub constructs a telemetry hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Publish notifies all subscribers of an event. Non-blocking; drops if buffer full.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if subscriber can't keep up; prevents blocking the pipeline.
		}
	}
}

// Subscribe returns a channel that will receive future events and a cleanup func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan Event, 64)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
