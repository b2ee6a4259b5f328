package workerpool

import (
	"context"
	"sync"
)

// Pool runs submitted jobs on at most size goroutines at a time.
type Pool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New creates a pool running at most size jobs at once. size below 1 means 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{semaphore: make(chan struct{}, size)}
}

// Submit blocks until a slot is free, then runs job in its own goroutine.
// It returns false without running job when ctx is done first.
func (p *Pool) Submit(ctx context.Context, job func()) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	if ctx.Err() != nil {
		<-p.semaphore
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()
		job()
	}()
	return true
}

// Wait blocks until every submitted job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
