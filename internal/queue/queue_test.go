package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueDropsWhileBusy(t *testing.T) {
	q := New()
	release := make(chan struct{})
	var running, maxRunning, ran atomic.Int32

	task := func(ctx context.Context) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		ran.Add(1)
		running.Add(-1)
	}

	accepted := 0
	for i := 0; i < 50; i++ {
		if q.Enqueue(task) {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
	if q.Dropped() != 49 {
		t.Errorf("Dropped() = %d, want 49", q.Dropped())
	}

	close(release)
	q.Wait()

	if maxRunning.Load() != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxRunning.Load())
	}
	if ran.Load() != 1 {
		t.Errorf("ran = %d, want 1", ran.Load())
	}
	if q.Len() != 0 {
		t.Errorf("Len() after completion = %d, want 0", q.Len())
	}
}

func TestSlotClearsAfterCompletion(t *testing.T) {
	q := New()
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if !q.Enqueue(func(context.Context) { ran.Add(1) }) {
			t.Fatalf("enqueue %d rejected on an idle queue", i)
		}
		q.Wait()
	}
	if ran.Load() != 5 {
		t.Errorf("ran = %d, want 5", ran.Load())
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New()
	var running, overlap atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				q.Enqueue(func(context.Context) {
					if running.Add(1) > 1 {
						overlap.Add(1)
					}
					time.Sleep(50 * time.Microsecond)
					running.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	q.Wait()
	if overlap.Load() != 0 {
		t.Errorf("observed %d overlapping tasks", overlap.Load())
	}
}

func TestDestroyCancelsAndRejects(t *testing.T) {
	q := New()
	started := make(chan struct{})
	cancelled := make(chan struct{})
	q.Enqueue(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started

	q.Destroy()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight task was not cancelled")
	}
	q.Wait()

	if q.Enqueue(func(context.Context) { t.Error("task ran after Destroy") }) {
		t.Error("Enqueue accepted work after Destroy")
	}
	q.Destroy() // idempotent
}
