package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Job is one unit of pool work. It receives the pool context.
type Job func(ctx context.Context)

// Pool runs jobs with a fixed number of slots.
//
// Submit blocks until a slot frees up or the pool is cancelled, so jobs from a
// single submitter start in submission order. A finished job frees its slot
// immediately. Drain waits for every admitted job.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup
}

func NewPool(ctx context.Context, size int) (*Pool, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", size)
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &Pool{ctx: poolCtx, cancel: cancel, sem: make(chan struct{}, size)}, nil
}

// Submit admits job once a slot is free. It returns the cancellation cause when
// the pool was cancelled first, and the job is not run.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if p.ctx.Err() != nil {
		return context.Cause(p.ctx)
	}

	select {
	case p.sem <- struct{}{}:
		// acquired
	case <-p.ctx.Done():
		return context.Cause(p.ctx)
	}
	if p.ctx.Err() != nil {
		<-p.sem
		return context.Cause(p.ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		job(p.ctx)
	}()
	return nil
}

// Drain waits for all admitted jobs to return.
func (p *Pool) Drain() {
	p.wg.Wait()
}

// Cancel stops admission and cancels the context of running jobs.
func (p *Pool) Cancel() {
	p.cancel()
}

// Close cancels the pool and waits for running jobs.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
