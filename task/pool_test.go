package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSubmitRunsTask(t *testing.T) {
	p := NewPool()
	tk := New("run", func(ctx context.Context, t *Task) (any, error) {
		return "done", nil
	})
	p.Submit(context.Background(), tk)

	result, err := tk.Join(context.Background())
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result != "done" {
		t.Fatalf("result = %v, want done", result)
	}
}

func TestPoolRunsTasksConcurrentlyUpToMax(t *testing.T) {
	p := NewPool()
	p.SetMaxWorkers(4)

	var running int32
	var peak int32
	release := make(chan struct{})

	mark := func(ctx context.Context, t *Task) (any, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return nil, nil
	}

	tasks := make([]*Task, 4)
	for i := range tasks {
		tasks[i] = New("mark", mark)
		p.Submit(context.Background(), tasks[i])
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&running) < 4 {
		select {
		case <-deadline:
			t.Fatalf("tasks did not all start running, running=%d", atomic.LoadInt32(&running))
		case <-time.After(time.Millisecond):
		}
	}
	close(release)

	for _, tk := range tasks {
		if _, err := tk.Join(context.Background()); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}
	if atomic.LoadInt32(&peak) != 4 {
		t.Fatalf("peak concurrency = %d, want 4", peak)
	}
}

func TestPoolSetMaxWorkersGrowsCapacity(t *testing.T) {
	p := NewPool()
	p.SetMaxWorkers(1)
	if p.MaxWorkers() != 1 {
		t.Fatalf("MaxWorkers = %d, want 1", p.MaxWorkers())
	}
	p.SetMaxWorkers(8)
	if p.MaxWorkers() != 8 {
		t.Fatalf("MaxWorkers = %d, want 8", p.MaxWorkers())
	}
}

func TestDefaultPoolIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("Default() should return the same Pool each call")
	}
}
