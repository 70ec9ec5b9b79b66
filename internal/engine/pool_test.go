package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Validation(t *testing.T) {
	_, err := NewPool(context.Background(), 0)
	assert.Error(t, err)

	var nilCtx context.Context
	_, err = NewPool(nilCtx, 1)
	assert.Error(t, err)
}

func TestPool_FIFOForSingleSubmitter(t *testing.T) {
	p, err := NewPool(context.Background(), 1)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	for i := range 20 {
		require.NoError(t, p.Submit(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	p.Drain()

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPool_Bound(t *testing.T) {
	const size = 3
	p, err := NewPool(context.Background(), size)
	require.NoError(t, err)

	var active, peak atomic.Int32
	for range 30 {
		require.NoError(t, p.Submit(func(context.Context) {
			n := active.Add(1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}))
	}
	p.Drain()

	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Equal(t, int32(0), active.Load())
}

func TestPool_SubmitBlocksUntilSlotFrees(t *testing.T) {
	p, err := NewPool(context.Background(), 1)
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) { <-release }))

	admitted := make(chan struct{})
	go func() {
		_ = p.Submit(func(context.Context) {})
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("second job admitted while the only slot was busy")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("second job never admitted")
	}
	p.Drain()
}

func TestPool_CancelStopsAdmission(t *testing.T) {
	cause := errors.New("stop")
	ctx, cancel := context.WithCancelCause(context.Background())
	p, err := NewPool(ctx, 1)
	require.NoError(t, err)

	started := make(chan struct{})
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	errCh := make(chan error, 1)
	go func() { errCh <- p.Submit(func(context.Context) { t.Error("job ran after cancel") }) }()

	cancel(cause)
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, cause)
	case <-time.After(time.Second):
		t.Fatal("blocked Submit did not return after cancel")
	}
	p.Drain()

	assert.ErrorIs(t, p.Submit(func(context.Context) {}), cause)
}

func TestPool_CloseCancelsRunningJobs(t *testing.T) {
	p, err := NewPool(context.Background(), 2)
	require.NoError(t, err)

	var stopped atomic.Int32
	for range 2 {
		require.NoError(t, p.Submit(func(ctx context.Context) {
			<-ctx.Done()
			stopped.Add(1)
		}))
	}
	p.Close()
	assert.Equal(t, int32(2), stopped.Load())
	assert.Error(t, p.Submit(func(context.Context) {}))
}
