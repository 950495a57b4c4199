// Package executor runs render work on a single worker in strict FIFO order.
//
// The worker is either a dedicated goroutine locked to its OS thread, or the
// goroutine that calls into the executor (inline mode). Inline mode exists
// for graphics APIs that refuse to be driven from more than one thread.
package executor

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// Executor errors.
var (
	// ErrNotStarted is returned when work is submitted before Start.
	ErrNotStarted = errors.New("executor: not started")

	// ErrStarted is returned when Start is called more than once.
	ErrStarted = errors.New("executor: already started")

	// ErrStopped is returned when work is submitted after Stop.
	ErrStopped = errors.New("executor: stopped")

	// ErrNilTask is returned when a nil task is submitted.
	ErrNilTask = errors.New("executor: nil task")
)

// Task is a unit of work. It runs exactly once on the worker.
type Task func() error

// ErrorHandler receives errors returned by asynchronous tasks, which have no
// caller waiting for them.
type ErrorHandler func(err error)

// Option configures an Executor.
type Option func(*Executor)

// WithErrorHandler sets the handler for asynchronous task failures.
// The handler runs on the worker.
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Executor) {
		if h != nil {
			e.onError = h
		}
	}
}

// job is a queued task. done is nil for asynchronous submissions.
type job struct {
	task Task
	done chan error
}

// Executor is a single-worker task queue.
//
// Tasks are executed one at a time in submission order regardless of whether
// they were submitted synchronously or asynchronously; see SubmitSync for
// the one inline-mode exception. Panics inside a task are not recovered.
//
// Thread safety: in dedicated mode Executor is safe for concurrent use. In
// inline mode all submissions must come from the goroutine that called Start.
type Executor struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []job

	started  bool
	stopping bool
	inline   bool

	// busy is set while an inline drain is executing a task.
	busy bool

	// done is closed once the worker has exited.
	done      chan struct{}
	closeDone sync.Once

	onError ErrorHandler

	running  atomic.Bool
	executed atomic.Uint64
	rejected atomic.Uint64
}

// New creates an executor. Call Start before submitting work.
func New(opts ...Option) *Executor {
	e := &Executor{
		done: make(chan struct{}),
		onError: func(err error) {
			slogger().Error("executor: async task failed", "err", err)
		},
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins accepting work. When inline is true the calling goroutine
// becomes the worker and no goroutine is spawned.
func (e *Executor) Start(inline bool) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrStarted
	}
	if e.stopping {
		e.mu.Unlock()
		return ErrStopped
	}
	e.started = true
	e.inline = inline
	e.mu.Unlock()

	e.running.Store(true)
	if inline {
		slogger().Debug("executor: started", "mode", "inline")
		return nil
	}

	ready := make(chan struct{})
	go e.loop(ready)
	<-ready
	slogger().Debug("executor: started", "mode", "dedicated")
	return nil
}

// loop is the dedicated worker. It owns its OS thread for its lifetime.
func (e *Executor) loop(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.finish()

	close(ready)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.stopping {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// Stopping and drained.
			e.mu.Unlock()
			return
		}
		j := e.pop()
		e.mu.Unlock()

		e.run(j)
	}
}

// pop removes the head of the queue. Caller holds e.mu.
func (e *Executor) pop() job {
	j := e.queue[0]
	e.queue[0] = job{}
	e.queue = e.queue[1:]
	return j
}

// run executes a job and routes its result.
func (e *Executor) run(j job) {
	err := j.task()
	e.executed.Add(1)
	if j.done != nil {
		j.done <- err
		return
	}
	if err != nil {
		e.onError(err)
	}
}

// enqueue appends a job. Caller holds e.mu.
func (e *Executor) enqueue(j job) error {
	if !e.started {
		e.rejected.Add(1)
		return ErrNotStarted
	}
	if e.stopping {
		e.rejected.Add(1)
		return ErrStopped
	}
	e.queue = append(e.queue, j)
	e.cond.Signal()
	return nil
}

// SubmitSync enqueues task and blocks until it has run, returning its error.
// Every task submitted before it has completed by the time it starts.
//
// In inline mode, calling SubmitSync from inside a running task first runs
// the tasks already queued and then task, all before the caller resumes. The
// enclosing task is the one exception to submission order: it finishes after
// the task it waits on.
func (e *Executor) SubmitSync(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	e.mu.Lock()
	if e.inline && e.busy && !e.stopping {
		for len(e.queue) > 0 {
			j := e.pop()
			e.mu.Unlock()
			e.run(j)
			e.mu.Lock()
		}
		e.mu.Unlock()
		err := task()
		e.executed.Add(1)
		return err
	}
	done := make(chan error, 1)
	if err := e.enqueue(job{task: task, done: done}); err != nil {
		e.mu.Unlock()
		return err
	}
	inline, busy := e.inline, e.busy
	e.mu.Unlock()

	if inline && !busy {
		e.drainInline()
	}
	return <-done
}

// SubmitAsync enqueues task and returns without waiting. A failing task is
// reported to the executor's ErrorHandler.
func (e *Executor) SubmitAsync(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	e.mu.Lock()
	if err := e.enqueue(job{task: task}); err != nil {
		e.mu.Unlock()
		return err
	}
	inline, busy := e.inline, e.busy
	e.mu.Unlock()

	if inline && !busy {
		e.drainInline()
	}
	return nil
}

// drainInline runs queued jobs on the calling goroutine until the queue is
// empty. Jobs enqueued by a running task are picked up by the same drain.
func (e *Executor) drainInline() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.busy = false
			e.mu.Unlock()
			return
		}
		j := e.pop()
		e.busy = true
		e.mu.Unlock()

		e.run(j)
	}
}

// Stop drains the remaining queued tasks in order and shuts the worker down.
// It blocks until the worker has exited. Stop is idempotent; submissions
// after Stop fail with ErrStopped.
func (e *Executor) Stop() {
	e.mu.Lock()
	first := !e.stopping
	e.stopping = true
	started, inline := e.started, e.inline
	e.cond.Broadcast()
	e.mu.Unlock()

	if first && (!started || inline) {
		if inline {
			e.drainInline()
		}
		e.finish()
	}
	<-e.done
}

// finish marks the worker as exited.
func (e *Executor) finish() {
	e.closeDone.Do(func() {
		e.running.Store(false)
		close(e.done)
		slogger().Debug("executor: stopped", "executed", e.executed.Load())
	})
}

// Done returns a channel closed once the worker has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// IsRunning reports whether the executor accepts work.
func (e *Executor) IsRunning() bool {
	return e.running.Load()
}

// Inline reports whether the executor runs tasks on the caller.
func (e *Executor) Inline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inline
}

// Stats is a point-in-time view of executor counters.
type Stats struct {
	Pending  int
	Executed uint64
	Rejected uint64
	Running  bool
	Inline   bool
}

// Stats returns the current counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	pending, inline := len(e.queue), e.inline
	e.mu.Unlock()
	return Stats{
		Pending:  pending,
		Executed: e.executed.Load(),
		Rejected: e.rejected.Load(),
		Running:  e.running.Load(),
		Inline:   inline,
	}
}
