package telemetry

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/uplift/pkg/bus"
	"github.com/odvcencio/uplift/pkg/logging"
)

// SubjectPrefix is the bus subject namespace for telemetry events. Each
// event publishes to SubjectPrefix + its type, so subscribers can filter
// with NATS wildcards ("uplift.events.experiment.*").
const SubjectPrefix = "uplift.events."

// relaySubscribePattern matches every telemetry subject.
const relaySubscribePattern = SubjectPrefix + ">"

// envelope wraps an event with the id of the process that emitted it, so a
// relay can drop its own messages when they come back off the bus.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Relay bridges a process-local Hub and the shared message bus. Events
// published on the hub go out on the bus; events arriving from other
// processes are re-published on the local hub so API clients see pipeline
// progress regardless of which worker produced it.
type Relay struct {
	hub    *Hub
	bus    bus.MessageBus
	origin string
	logger *logging.Logger
}

// NewRelay builds a relay for the given hub and bus. origin must be unique
// per process; events carrying it are not echoed back onto the hub.
func NewRelay(hub *Hub, b bus.MessageBus, origin string, logger *logging.Logger) *Relay {
	return &Relay{hub: hub, bus: b, origin: origin, logger: logger}
}

// Run pumps events in both directions until ctx is cancelled. Blocking; run
// it on its own goroutine.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.bus.Subscribe(ctx, relaySubscribePattern, r.handleBusMessage)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	events, unsubscribe := r.hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.relayed {
				continue
			}
			r.publishToBus(ctx, event)
		}
	}
}

func (r *Relay) publishToBus(ctx context.Context, event Event) {
	payload, err := json.Marshal(envelope{Origin: r.origin, Event: event})
	if err != nil {
		r.logger.Error(logging.CategoryBus, "event_encode", string(event.Type), map[string]any{
			"error": err.Error(),
		})
		return
	}
	subject := SubjectPrefix + string(event.Type)
	if err := r.bus.Publish(ctx, subject, payload); err != nil {
		r.logger.Warn(logging.CategoryBus, "event_publish", subject, map[string]any{
			"error": err.Error(),
		})
	}
}

func (r *Relay) handleBusMessage(msg *bus.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		r.logger.Warn(logging.CategoryBus, "event_decode", msg.Subject, map[string]any{
			"error": err.Error(),
		})
		return
	}
	if env.Origin == r.origin {
		return
	}
	env.Event.relayed = true
	r.hub.Publish(env.Event)
}
