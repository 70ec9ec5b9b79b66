package fetcher

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"adoinventory/internal/outcome"
)

// unknownRemaining means no rate limit header has been observed yet. Azure
// DevOps only reports X-RateLimit-* once a caller approaches throttling, so an
// unobserved budget does not block.
const unknownRemaining = -1

// trialStale is how long callers wait on a trial call that never reported
// back before another one is let through.
const trialStale = DefaultTimeout

// Budget tracks the server reported request budget shared by every worker of a run.
//
// Acquire blocks while a Retry-After cooldown is active, or while the reported
// remaining budget is exhausted and the reset time has not passed.
type Budget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	trial     bool
	trialAt   time.Time
	now       func() time.Time
	notifyCh  chan struct{}
}

func NewBudget() *Budget {
	return &Budget{
		remaining: unknownRemaining,
		now:       time.Now,
		notifyCh:  make(chan struct{}),
	}
}

// Remaining returns the last reported remaining budget; ok is false until a
// response carried one.
func (b *Budget) Remaining() (remaining int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining, b.remaining != unknownRemaining
}

// Acquire takes one request slot.
func (b *Budget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return errors.New("budget: nil context")
	}
	if b == nil || b.now == nil || b.notifyCh == nil {
		return errors.New("budget: not initialized (use NewBudget)")
	}

	for {
		b.mu.Lock()
		now := b.now()

		if now.Before(b.cooldown) {
			until, ch := b.cooldown, b.notifyCh
			b.mu.Unlock()
			if err := waitUntil(ctx, ch, until.Sub(now)); err != nil {
				return err
			}
			continue
		}

		if b.remaining == unknownRemaining {
			b.mu.Unlock()
			return nil
		}
		if b.remaining > 0 {
			b.remaining--
			b.mu.Unlock()
			return nil
		}

		// Reset passed without a refreshed budget: let exactly one trial call through
		// and hold the rest until Observe sees new headers.
		if !now.Before(b.reset) {
			if !b.trial || !now.Before(b.trialAt.Add(trialStale)) {
				b.trial = true
				b.trialAt = now
				b.mu.Unlock()
				return nil
			}
			until, ch := b.trialAt.Add(trialStale), b.notifyCh
			b.mu.Unlock()
			if err := waitUntil(ctx, ch, until.Sub(now)); err != nil {
				return err
			}
			continue
		}

		reset, ch := b.reset, b.notifyCh
		b.mu.Unlock()
		if err := waitUntil(ctx, ch, reset.Sub(now)); err != nil {
			return err
		}
	}
}

// waitUntil blocks for d, or until the budget changes, or until ctx is done.
func waitUntil(ctx context.Context, changed <-chan struct{}, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	case <-timer.C:
		return nil
	}
}

func (b *Budget) signalLocked() {
	close(b.notifyCh)
	b.notifyCh = make(chan struct{})
}

// Observe updates the budget from rate limit headers. Both Azure DevOps and
// GitHub use Retry-After, X-RateLimit-Remaining and X-RateLimit-Reset.
func (b *Budget) Observe(resp *http.Response) {
	if b == nil || resp == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	now := b.now()

	if wait := outcome.RetryAfter(resp.Header, now); wait > 0 {
		if until := now.Add(wait); until.After(b.cooldown) {
			b.cooldown = until
			changed = true
		}
	}

	v := strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining"))
	switch {
	case v != "":
		// Azure DevOps may report fractional TSTU values.
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			if n := int(f); n != b.remaining {
				b.remaining = n
				changed = true
			}
		}
	case b.remaining != unknownRemaining && !now.Before(b.reset):
		// Past the reset and no longer reported: the caller left the
		// throttling zone.
		b.remaining = unknownRemaining
		changed = true
	}

	if v := strings.TrimSpace(resp.Header.Get("X-RateLimit-Reset")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			if reset := time.Unix(secs, 0); !b.reset.Equal(reset) {
				b.reset = reset
				changed = true
			}
		}
	}

	if changed {
		b.trial = false
		b.signalLocked()
	}
}
