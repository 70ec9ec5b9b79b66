// Package retry wraps API calls with bounded exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"adoinventory/internal/outcome"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
)

// Call performs one attempt of an API call.
type Call func(ctx context.Context) outcome.Outcome

// Policy decides how often and how long to wait between attempts.
//
// The zero value is not usable; start from Default and override fields.
type Policy struct {
	// MaxAttempts bounds the total number of calls, first attempt included.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt. It doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps both computed backoff and server supplied hints.
	MaxDelay time.Duration

	// Retryable selects which outcomes get another attempt.
	// Nil means outcome.Outcome.Retryable.
	Retryable func(outcome.Outcome) bool

	// OnRetry is invoked before every wait. Optional.
	OnRetry func(attempt int, o outcome.Outcome, wait time.Duration)

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Do runs call until it succeeds, returns a non-retryable outcome, or the
// attempt bound is reached. The returned outcome carries the attempt count;
// Exhausted is set when retries ran out.
func (p Policy) Do(ctx context.Context, call Call) outcome.Outcome {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = outcome.Outcome.Retryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last outcome.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			last = outcome.Transient(0, err)
			last.Attempts = attempt - 1
			return last
		}

		last = call(ctx)
		last.Attempts = attempt
		if last.OK() || !retryable(last) {
			return last
		}
		if attempt == maxAttempts {
			break
		}

		wait := p.wait(attempt, last)
		if p.OnRetry != nil {
			p.OnRetry(attempt, last, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			last = outcome.Transient(0, err)
			last.Attempts = attempt
			return last
		}
	}

	last.Exhausted = true
	return last
}

// wait returns the delay after the given (1-based) failed attempt.
func (p Policy) wait(attempt int, o outcome.Outcome) time.Duration {
	if o.Kind == outcome.RateLimited && o.RetryAfter > 0 {
		if p.MaxDelay > 0 && o.RetryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return o.RetryAfter
	}
	return p.Backoff(attempt)
}

// Backoff returns the jittered exponential delay for the given failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := p.jitter
	if jitter == nil {
		jitter = halfJitter
	}
	return jitter(d)
}

// halfJitter keeps half the delay and randomizes the rest.
func halfJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(half+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
