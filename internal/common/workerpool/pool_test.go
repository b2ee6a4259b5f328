package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsAllJobs(t *testing.T) {
	pool := New(4)
	var done int64

	for i := 0; i < 50; i++ {
		assert.True(t, pool.Submit(context.Background(), func() {
			atomic.AddInt64(&done, 1)
		}))
	}
	pool.Wait()

	assert.Equal(t, int64(50), done)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := New(2)
	var running, peak int64

	for i := 0; i < 10; i++ {
		pool.Submit(context.Background(), func() {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, peak, int64(2))
}

func TestPool_SubmitAfterCancel(t *testing.T) {
	pool := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	assert.False(t, pool.Submit(ctx, func() { ran = true }))
	pool.Wait()
	assert.False(t, ran)
}

func TestPool_CancelWhileWaitingForSlot(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	pool.Submit(context.Background(), func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.False(t, pool.Submit(ctx, func() {}))

	close(release)
	pool.Wait()
}

func TestNew_MinimumSize(t *testing.T) {
	assert.Equal(t, 1, cap(New(0).semaphore))
}
