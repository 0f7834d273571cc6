// Package queue holds the render queue: a single-slot task runner that drops
// work instead of buffering it.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of render work. It should return promptly once ctx is done.
type Task func(ctx context.Context)

// Queue runs at most one task at a time. A task offered while another is in
// flight is dropped, so a fast tick source can never stack up draws.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	slot   *semaphore.Weighted
	busy   atomic.Bool
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	dropped int
}

// New creates an empty queue.
func New() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{ctx: ctx, cancel: cancel, slot: semaphore.NewWeighted(1)}
}

// Len returns 1 while a task is in flight and 0 otherwise.
func (q *Queue) Len() int {
	if q.busy.Load() {
		return 1
	}
	return 0
}

// Enqueue starts task on its own goroutine if the slot is free and reports
// whether it was accepted.
func (q *Queue) Enqueue(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if !q.slot.TryAcquire(1) {
		q.dropped++
		return false
	}
	q.busy.Store(true)
	q.wg.Add(1)

	go func() {
		defer func() {
			q.busy.Store(false)
			q.slot.Release(1)
			q.wg.Done()
		}()
		task(q.ctx)
	}()
	return true
}

// Dropped returns how many tasks were rejected because the slot was taken.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Wait blocks until no task is in flight.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Destroy cancels the in-flight task's context and rejects all further
// work. It does not wait for the running task. Safe to call twice.
func (q *Queue) Destroy() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
}
