package fetcher

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget(t *testing.T) {
	fixedNow := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	newBudget := func(t *testing.T) *Budget {
		t.Helper()
		b := NewBudget()
		b.now = func() time.Time { return fixedNow }
		return b
	}

	setState := func(t *testing.T, b *Budget, remaining int, reset time.Time) {
		t.Helper()
		b.mu.Lock()
		b.remaining = remaining
		b.reset = reset
		b.mu.Unlock()
	}

	headers := func(kv ...string) *http.Response {
		resp := &http.Response{Header: make(http.Header)}
		for i := 0; i+1 < len(kv); i += 2 {
			resp.Header.Set(kv[i], kv[i+1])
		}
		return resp
	}

	shortCtx := func(t *testing.T) context.Context {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		t.Cleanup(cancel)
		return ctx
	}

	t.Run("unobserved budget never blocks", func(t *testing.T) {
		b := newBudget(t)
		for i := 0; i < 10000; i++ {
			require.NoError(t, b.Acquire(context.Background()))
		}
		_, ok := b.Remaining()
		assert.False(t, ok)
	})

	t.Run("Observe sets remaining and reset", func(t *testing.T) {
		b := newBudget(t)
		b.Observe(headers("X-RateLimit-Remaining", "10", "X-RateLimit-Reset", "1700000000"))

		rem, ok := b.Remaining()
		require.True(t, ok)
		assert.Equal(t, 10, rem)
		assert.True(t, b.reset.Equal(time.Unix(1700000000, 0)))
	})

	t.Run("fractional remaining is truncated", func(t *testing.T) {
		b := newBudget(t)
		b.Observe(headers("X-RateLimit-Remaining", "42.75"))

		rem, _ := b.Remaining()
		assert.Equal(t, 42, rem)
	})

	t.Run("Retry-After causes cooldown blocking", func(t *testing.T) {
		b := newBudget(t)
		b.Observe(headers("Retry-After", "60"))

		assert.Error(t, b.Acquire(shortCtx(t)))
	})

	t.Run("Retry-After only extends cooldown", func(t *testing.T) {
		b := newBudget(t)
		b.Observe(headers("Retry-After", "60"))
		b.Observe(headers("Retry-After", "10"))

		b.mu.Lock()
		cooldown := b.cooldown
		b.mu.Unlock()
		assert.True(t, cooldown.Equal(fixedNow.Add(60*time.Second)), "cooldown %v", cooldown)
	})

	t.Run("invalid headers are ignored", func(t *testing.T) {
		b := newBudget(t)
		setState(t, b, 7, time.Unix(123, 0))
		b.Observe(headers("X-RateLimit-Remaining", "nope", "X-RateLimit-Reset", "not-a-time"))

		rem, _ := b.Remaining()
		assert.Equal(t, 7, rem)
		assert.True(t, b.reset.Equal(time.Unix(123, 0)))
	})

	t.Run("exhausted before reset blocks", func(t *testing.T) {
		b := newBudget(t)
		setState(t, b, 0, fixedNow.Add(time.Hour))

		assert.Error(t, b.Acquire(shortCtx(t)))
	})

	t.Run("after reset only one trial call passes until update", func(t *testing.T) {
		b := newBudget(t)
		setState(t, b, 0, fixedNow.Add(-time.Second))

		require.NoError(t, b.Acquire(context.Background()))
		assert.Error(t, b.Acquire(shortCtx(t)))
	})

	t.Run("Observe wakes waiters", func(t *testing.T) {
		b := newBudget(t)
		setState(t, b, 0, fixedNow.Add(time.Hour))

		errCh := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			errCh <- b.Acquire(ctx)
		}()

		time.Sleep(10 * time.Millisecond)
		b.Observe(headers("X-RateLimit-Remaining", "1", "X-RateLimit-Reset", "1700000000"))

		require.NoError(t, <-errCh)
	})

	t.Run("headerless reply after throttling releases the budget", func(t *testing.T) {
		now := fixedNow
		b := NewBudget()
		b.now = func() time.Time { return now }

		b.Observe(headers("X-RateLimit-Remaining", "1", "X-RateLimit-Reset", strconv.FormatInt(fixedNow.Add(time.Second).Unix(), 10)))
		require.NoError(t, b.Acquire(context.Background()))

		now = fixedNow.Add(2 * time.Second)
		require.NoError(t, b.Acquire(context.Background()), "first caller after reset passes")

		b.Observe(headers())
		_, ok := b.Remaining()
		assert.False(t, ok, "budget should be unobserved again")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Acquire(ctx))
		}
	})

	t.Run("headerless reply before reset keeps the budget", func(t *testing.T) {
		b := newBudget(t)
		setState(t, b, 0, fixedNow.Add(time.Hour))
		b.Observe(headers())

		rem, ok := b.Remaining()
		require.True(t, ok)
		assert.Equal(t, 0, rem)
		assert.Error(t, b.Acquire(shortCtx(t)))
	})

	t.Run("stale trial call lets the next caller through", func(t *testing.T) {
		now := fixedNow
		b := NewBudget()
		b.now = func() time.Time { return now }
		setState(t, b, 0, fixedNow.Add(-time.Second))

		require.NoError(t, b.Acquire(context.Background()))
		assert.Error(t, b.Acquire(shortCtx(t)))

		now = fixedNow.Add(trialStale)
		require.NoError(t, b.Acquire(shortCtx(t)))
	})

	t.Run("Retry-After accepts an HTTP date", func(t *testing.T) {
		b := newBudget(t)
		b.Observe(headers("Retry-After", fixedNow.Add(90*time.Second).Format(http.TimeFormat)))

		b.mu.Lock()
		cooldown := b.cooldown
		b.mu.Unlock()
		assert.True(t, cooldown.Equal(fixedNow.Add(90*time.Second)), "cooldown %v", cooldown)
		assert.Error(t, b.Acquire(shortCtx(t)))
	})

	t.Run("nil context fails fast", func(t *testing.T) {
		b := newBudget(t)
		var nilCtx context.Context
		assert.Error(t, b.Acquire(nilCtx))
	})
}
