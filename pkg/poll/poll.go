// Package poll provides bounded polling against slow external collaborators.
package poll

import (
	"context"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
)

// Options bounds a polling loop. ResourceID names the thing being waited on
// so timeout errors identify it.
type Options struct {
	ResourceID string
	Interval   time.Duration
	MaxWait    time.Duration
}

const (
	defaultInterval = time.Second
	defaultMaxWait  = 5 * time.Minute
)

// withDefaults fills in non-positive bounds so a zero Options still
// terminates.
func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
	return o
}

// WaitFor fetches a value on every tick until done reports a terminal value
// or the bound elapses. The first fetch happens immediately. A fetch error
// aborts the loop; an elapsed bound returns a timeout error carrying the
// resource id and the bound.
func WaitFor[T any](ctx context.Context, opts Options, fetch func(context.Context) (T, error), done func(T) bool) (T, error) {
	var zero T
	opts = opts.withDefaults()

	deadline := time.Now().Add(opts.MaxWait)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		value, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		if done(value) {
			return value, nil
		}
		if !time.Now().Before(deadline) {
			return value, apperrors.NewTimeout(opts.ResourceID, opts.MaxWait)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
