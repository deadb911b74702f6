// Package timers provides named, cancellable one-shot and periodic tasks.
// Callbacks are handed to a dispatch function rather than run on the timer
// goroutine, so a single consumer can own all mutable state.
package timers

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatch delivers a callback to its execution context.
type Dispatch func(fn func())

// Handle identifies a scheduled task and allows cancelling it.
type Handle struct {
	runner *Runner
	name   string
	seq    uint64
}

// Cancel stops the task. Safe to call more than once; a periodic task
// stops firing, a one-shot that has not fired yet is dropped.
func (h *Handle) Cancel() {
	if h == nil || h.runner == nil {
		return
	}
	h.runner.cancel(h.name, h.seq)
}

type task struct {
	seq    uint64
	timer  *time.Timer
	ticker *time.Ticker
	stop   chan struct{}
}

// Runner schedules tasks by name. Scheduling a task under a name that is
// already scheduled replaces the previous one.
type Runner struct {
	mu       sync.Mutex
	tasks    map[string]*task
	nextSeq  uint64
	dispatch Dispatch
	closed   bool
}

// NewRunner creates a runner delivering callbacks through dispatch.
func NewRunner(dispatch Dispatch) *Runner {
	return &Runner{
		tasks:    make(map[string]*task),
		dispatch: dispatch,
	}
}

// After schedules fn to run once after d. The returned handle cancels it.
func (r *Runner) After(name string, d time.Duration, fn func()) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	r.replaceLocked(name)
	r.nextSeq++
	seq := r.nextSeq

	t := &task{seq: seq}
	t.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		current, ok := r.tasks[name]
		if ok && current.seq == seq {
			delete(r.tasks, name)
		}
		closed := r.closed
		r.mu.Unlock()
		if !ok || current.seq != seq || closed {
			return
		}
		r.dispatch(fn)
	})
	r.tasks[name] = t

	log.Debug().Str("task", name).Dur("delay", d).Msg("One-shot task scheduled")
	return &Handle{runner: r, name: name, seq: seq}
}

// Every schedules fn to run every d until cancelled.
func (r *Runner) Every(name string, d time.Duration, fn func()) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	r.replaceLocked(name)
	r.nextSeq++
	seq := r.nextSeq

	t := &task{
		seq:    seq,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	r.tasks[name] = t

	go func() {
		for {
			select {
			case <-t.stop:
				return
			case <-t.ticker.C:
				r.dispatch(fn)
			}
		}
	}()

	log.Debug().Str("task", name).Dur("interval", d).Msg("Periodic task scheduled")
	return &Handle{runner: r, name: name, seq: seq}
}

// Scheduled reports whether a task is currently scheduled under name.
func (r *Runner) Scheduled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[name]
	return ok
}

// Cancel stops the task scheduled under name, if any.
func (r *Runner) Cancel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceLocked(name)
}

func (r *Runner) cancel(name string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[name]; ok && t.seq == seq {
		stopTask(t)
		delete(r.tasks, name)
	}
}

// replaceLocked stops and removes any existing task under name.
func (r *Runner) replaceLocked(name string) {
	if t, ok := r.tasks[name]; ok {
		stopTask(t)
		delete(r.tasks, name)
	}
}

func stopTask(t *task) {
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
	if t.stop != nil {
		close(t.stop)
	}
}

// Close cancels all tasks. The runner cannot be reused afterwards.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for name, t := range r.tasks {
		stopTask(t)
		delete(r.tasks, name)
	}
}
