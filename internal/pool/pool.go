// Package pool implements the bounded executor: a fixed set of worker
// goroutines running tasks under a concurrency ceiling that can be raised
// or lowered while the pool is running.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wq5881898/Scraper/internal/domain"
	"github.com/Wq5881898/Scraper/pkg/telemetry"
)

// queueDepth bounds how many admitted tasks may sit between admission and
// pickup by a worker. Admission already caps this at the ceiling, so the
// buffer only needs to exceed any ceiling the tuner will set.
const queueDepth = 64

// TaskFunc is the body of one task. It must return a Result; panics are
// caught at the worker boundary and converted to failed Results.
type TaskFunc func(ctx context.Context, task domain.Task) domain.Result

type state int

const (
	stateRunning state = iota
	stateStopped
)

type job struct {
	ctx    context.Context
	task   domain.Task
	fn     TaskFunc
	handle *Handle
}

// Handle resolves to the Result of one submitted task.
type Handle struct {
	done chan struct{}
	res  domain.Result
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) resolve(res domain.Result) {
	h.res = res
	close(h.done)
}

// Done returns a channel closed once the Result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the task has produced its Result.
func (h *Handle) Result() domain.Result {
	<-h.done
	return h.res
}

// Pool admits at most Limit() tasks concurrently and runs them on a fixed
// set of worker goroutines. The ceiling and in-flight count share one mutex;
// waiting submitters are parked on a broadcast channel that is closed and
// replaced whenever either value changes.
type Pool struct {
	logger *slog.Logger
	jobs   chan job

	mu       sync.Mutex
	limit    int
	inFlight int
	state    state
	wake     chan struct{}

	tasks   sync.WaitGroup // admitted, not yet completed
	workers sync.WaitGroup
	done    chan struct{} // closed once workers have exited
	stopped chan struct{} // closed by the Stop transition
}

// New starts a pool with the given fixed worker count and initial admission
// ceiling. Both are clamped to at least 1.
func New(workers, initialLimit int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if initialLimit < 1 {
		initialLimit = 1
	}
	p := &Pool{
		logger:  logger,
		jobs:    make(chan job, queueDepth),
		limit:   initialLimit,
		wake:    make(chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	telemetry.PoolAdmissionCeiling.Set(float64(initialLimit))
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

// Submit blocks until an admission slot is free, dispatches the task, and
// returns a Handle resolving to its Result. After Stop the Handle resolves
// immediately to a rejected Result; a ctx cancelled while waiting for
// admission resolves to a cancelled Result. Submit never hangs past those
// two signals and never returns an error.
func (p *Pool) Submit(ctx context.Context, task domain.Task, fn TaskFunc) *Handle {
	h := newHandle()
	telemetry.PoolTasksSubmitted.WithLabelValues(task.Source).Inc()

	p.mu.Lock()
	for {
		if p.state == stateStopped {
			p.mu.Unlock()
			telemetry.PoolTasksRejected.Inc()
			h.resolve(domain.RejectedResult(task))
			return h
		}
		if p.inFlight < p.limit {
			p.inFlight++
			p.tasks.Add(1)
			telemetry.PoolTasksInFlight.Set(float64(p.inFlight))
			break
		}
		wake := p.wake
		p.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			h.resolve(domain.FailedResult(task, domain.ErrClassCanceled, 0))
			return h
		}
		p.mu.Lock()
	}
	p.mu.Unlock()

	p.jobs <- job{ctx: ctx, task: task, fn: fn, handle: h}
	return h
}

// SetLimit changes the admission ceiling to max(1, n) and returns the old
// and new values. Raising wakes waiting submitters up to the new capacity.
// Lowering never blocks: in-flight tasks above the new ceiling run to
// completion and future admissions self-throttle.
func (p *Pool) SetLimit(n int) (old, current int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	old = p.limit
	p.limit = n
	telemetry.PoolAdmissionCeiling.Set(float64(n))
	p.broadcastLocked()
	return old, n
}

// Limit returns the current admission ceiling.
func (p *Pool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// InFlight returns the number of admitted, not yet completed tasks.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Stop rejects all future admissions. With drain true it waits for every
// in-flight task to finish and its Handle to resolve; with drain false it
// returns as soon as shutdown is signalled. Safe to call more than once.
func (p *Pool) Stop(drain bool) {
	p.mu.Lock()
	first := p.state == stateRunning
	if first {
		p.state = stateStopped
		close(p.stopped)
		p.broadcastLocked()
	}
	p.mu.Unlock()

	if first {
		go func() {
			p.tasks.Wait()
			close(p.jobs)
			p.workers.Wait()
			close(p.done)
		}()
	}
	if drain {
		<-p.done
	}
}

// Stopped returns a channel closed once the pool no longer admits tasks.
func (p *Pool) Stopped() <-chan struct{} { return p.stopped }

// broadcastLocked wakes every parked submitter. Caller holds p.mu.
func (p *Pool) broadcastLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for j := range p.jobs {
		start := time.Now()
		res := p.run(j)
		telemetry.PoolTaskDurationSeconds.WithLabelValues(j.task.Source).Observe(time.Since(start).Seconds())
		j.handle.resolve(res)
		p.release()
	}
}

// run executes the task body, converting a panic into a failed Result so a
// misbehaving task can never take down a worker.
func (p *Pool) run(j job) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				slog.String("task_id", j.task.ID),
				slog.String("source", j.task.Source),
				slog.Any("panic", r),
			)
			res = domain.FailedResult(j.task, domain.ErrClassPanic, 0)
		}
	}()
	return j.fn(j.ctx, j.task)
}

// release frees one admission slot. Runs after every task, failed or not.
func (p *Pool) release() {
	p.mu.Lock()
	p.inFlight--
	if p.inFlight < 0 {
		p.inFlight = 0
	}
	telemetry.PoolTasksInFlight.Set(float64(p.inFlight))
	p.broadcastLocked()
	p.mu.Unlock()
	p.tasks.Done()
}
