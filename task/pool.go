package task

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxWorkers matches ty_pool_new's pool->max_threads = 16.
const DefaultMaxWorkers = 16

// DefaultIdleTimeout matches ty_pool_new's pool->unused_timeout = 10000ms:
// a worker goroutine that sits idle this long exits instead of lingering.
const DefaultIdleTimeout = 10 * time.Second

// Pool runs submitted Tasks on a bounded set of worker goroutines,
// growing workers on demand up to MaxWorkers and shrinking them back
// down after IdleTimeout of no work, matching ty_pool/worker_thread_main.
type Pool struct {
	mu          sync.Mutex
	cond        *sync.Cond
	maxWorkers  int
	idleTimeout time.Duration
	pending     []*Task
	workers     int
}

// NewPool creates a Pool with the default worker limit and idle timeout.
func NewPool() *Pool {
	p := &Pool{maxWorkers: DefaultMaxWorkers, idleTimeout: DefaultIdleTimeout}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// MaxWorkers returns the current worker ceiling.
func (p *Pool) MaxWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxWorkers
}

// SetMaxWorkers changes the worker ceiling, matching ty_pool_set_max_threads.
func (p *Pool) SetMaxWorkers(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxWorkers = n
	p.spawnIfNeededLocked()
}

// IdleTimeout returns how long an idle worker waits before exiting.
func (p *Pool) IdleTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idleTimeout
}

// SetIdleTimeout changes the idle-worker exit timeout.
func (p *Pool) SetIdleTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleTimeout = d
}

// Submit enqueues t for execution and wakes one waiting worker, matching
// ty_task_start. It also spawns a new worker whenever the pool is below
// its worker ceiling, whether or not a worker is idle.
func (p *Pool) Submit(ctx context.Context, t *Task) {
	t.setStatus(StatusPending)

	p.mu.Lock()
	p.pending = append(p.pending, t)
	spawn := p.spawnIfNeededLocked()
	p.cond.Signal()
	p.mu.Unlock()

	if spawn {
		go p.workerLoop(ctx)
	}
}

// spawnIfNeededLocked starts one additional worker if there is pending
// work and room under maxWorkers. Caller must hold p.mu.
func (p *Pool) spawnIfNeededLocked() bool {
	if len(p.pending) > 0 && p.workers < p.maxWorkers {
		p.workers++
		return true
	}
	return false
}

func (p *Pool) workerLoop(ctx context.Context) {
	p.mu.Lock()
	for {
		for len(p.pending) == 0 {
			if !p.waitLocked() {
				p.workers--
				p.mu.Unlock()
				return
			}
		}
		t := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		t.execute(ctx)

		p.mu.Lock()
	}
}

// waitLocked blocks on the pool's condition variable for up to
// idleTimeout, returning false if it timed out with no new work. Caller
// must hold p.mu; it is released while waiting and re-acquired after.
func (p *Pool) waitLocked() bool {
	timeout := p.idleTimeout
	woken := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		close(woken)
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.cond.Wait()

	select {
	case <-woken:
		return len(p.pending) > 0
	default:
		return true
	}
}

var defaultPool = NewPool()

// Default returns the process-wide default pool, matching
// ty_pool_get_default.
func Default() *Pool {
	return defaultPool
}
