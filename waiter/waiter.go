// Package waiter synchronizes scenarios with the page by polling a predicate until it holds,
// instead of sleeping for a fixed time.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultInterval = 50 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// ErrWaitTimeout is matched by every TimeoutError.
var ErrWaitTimeout = errors.New("timed out waiting for condition")

// TimeoutError reports a predicate that never held.
type TimeoutError struct {
	Predicate string
	Elapsed   time.Duration
	Timeout   time.Duration
	LastErr   error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.Predicate)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last evaluation error: %s)", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// Evaluator runs a JavaScript expression in the page and decodes its result into res.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res interface{}) error
}

// Predicate is a condition on the page.
type Predicate interface {
	Describe() string
	Check(ctx context.Context, ev Evaluator) (bool, error)
}

// A Predicate that also implements Beginner has Begin called once when a wait starts, before
// the first Check.
type Beginner interface {
	Begin(ctx context.Context, ev Evaluator) error
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// WaitFor checks p until it holds or opts.Timeout has passed. It returns nil as soon as p holds,
// a *TimeoutError if it never did, or the context's error if ctx ends first. Errors from
// evaluating p do not end the wait; the page may simply not be ready yet.
//
// Each check runs under the wait's deadline, and the time between checks is clamped to the
// remaining time, so a wait that times out returns no later than one interval after the timeout
// even if the page stops answering.
func WaitFor(ctx context.Context, ev Evaluator, p Predicate, opts Options) error {
	opts = opts.withDefaults()
	start := time.Now()
	deadline := start.Add(opts.Timeout)
	checkCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr error
	timedOut := func() error {
		return &TimeoutError{
			Predicate: p.Describe(),
			Elapsed:   time.Since(start),
			Timeout:   opts.Timeout,
			LastErr:   lastErr,
		}
	}

	if b, ok := p.(Beginner); ok {
		if err := b.Begin(checkCtx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if checkCtx.Err() != nil {
				return timedOut()
			}
			lastErr = err
		}
	}

	for {
		ok, err := p.Check(checkCtx, ev)
		if err == nil && ok {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && checkCtx.Err() == nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || checkCtx.Err() != nil {
			return timedOut()
		}
		sleep := opts.Interval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}
