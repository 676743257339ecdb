// Package bus provides the job dispatch layer between the API and the
// pipeline workers. Experiment runs and variant implementations travel as
// tasks on named queues; progress notifications travel as published
// messages. The default implementation uses NATS, with an in-memory option
// for testing and single-process deployments.
package bus

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when operating on a closed bus or subscription.
	ErrClosed = errors.New("bus or subscription closed")

	// ErrQueueEmpty is returned when pulling from an empty queue with no waiters.
	ErrQueueEmpty = errors.New("queue empty")
)

// MessageBus carries pipeline notifications and owns the task queues.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for message delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Supports wildcards: "uplift.events.*" matches "uplift.events.experiment".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	// Queue returns a TaskQueue for the given name, backed by this bus.
	Queue(name string) TaskQueue

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(msg *Message)

// Message represents an incoming message from the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription represents an active subscription that can be cancelled.
type Subscription interface {
	// Unsubscribe stops receiving messages and cleans up resources.
	Unsubscribe() error

	// Subject returns the subject pattern this subscription is for.
	Subject() string
}

// TaskQueue distributes pipeline jobs to workers. Tasks must be explicitly
// acknowledged; an unacknowledged task redelivers after the ack window.
type TaskQueue interface {
	// Push adds a task to the queue.
	Push(ctx context.Context, data []byte) error

	// Pull retrieves the next task from the queue.
	// Blocks until a task is available or context is cancelled.
	Pull(ctx context.Context) (*Task, error)

	// Ack acknowledges successful processing of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack returns a task to the queue for retry.
	Nack(ctx context.Context, taskID string) error

	// Len returns the approximate number of pending tasks.
	Len(ctx context.Context) (int, error)

	// Name returns the queue name.
	Name() string
}

// Task represents a unit of work pulled from a TaskQueue.
type Task struct {
	ID   string
	Data []byte
}

// Config holds configuration for creating a MessageBus.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	// Ignored for in-memory bus.
	URL string

	// Name is a client identifier for debugging/monitoring.
	Name string

	// Token authenticates the connection. Ignored when empty and for the
	// in-memory bus.
	Token string

	// Timeout is the default timeout for operations.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "nats://localhost:4222",
		Name:    "uplift",
		Timeout: 30 * time.Second,
	}
}

// New picks an implementation from the configured URL: an empty URL or the
// literal "memory" yields the in-process bus, anything else dials NATS.
func New(cfg Config) (MessageBus, error) {
	if cfg.URL == "" || cfg.URL == "memory" {
		return NewMemoryBus(), nil
	}
	return NewNATSBus(cfg)
}
