// Package scheduler runs named, cancellable background tasks.
//
// Every task is started with an explicit handle. Cancelling a handle
// cancels the task's context and waits for it to return, so no work of
// the task runs after Cancel returns. A task must not Cancel itself; it
// may Abort itself.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrClosed is returned when starting a task on a closed scheduler.
	ErrClosed = errors.New("scheduler closed")

	// ErrTaskExists is returned when a task with the same name is running.
	ErrTaskExists = errors.New("task already running")

	// ErrInvalidInterval is returned for a non-positive period.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Func is the body of a task. It must return promptly once ctx is done.
type Func func(ctx context.Context)

// Task is the handle of a running task.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	owner  *Scheduler
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Cancel stops the task and waits for it to return. It is safe to call
// multiple times.
func (t *Task) Cancel() {
	t.cancel()
	<-t.done
}

// Abort cancels the task without waiting for it and frees its name at
// once, so a replacement can start while this run winds down.
func (t *Task) Abort() {
	t.cancel()
	t.owner.remove(t)
}

// Done is closed once the task has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler owns a set of named tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a scheduler. logger may be nil.
func New(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*Task),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// RunPeriodic runs fn immediately and then every interval until cancelled.
// Runs never overlap: a slow run delays the next one.
func (s *Scheduler) RunPeriodic(name string, interval time.Duration, fn Func) (*Task, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return s.start(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for ctx.Err() == nil {
			fn(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

// RunOnce runs fn once in the background.
func (s *Scheduler) RunOnce(name string, fn Func) (*Task, error) {
	return s.start(name, fn)
}

func (s *Scheduler) start(name string, body Func) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tasks[name]; ok {
		return nil, ErrTaskExists
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{}), owner: s}
	s.tasks[name] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer s.remove(t)
		defer cancel()

		s.debugLog("task started", "task", name)
		body(ctx)
		s.debugLog("task finished", "task", name)
	}()
	return t, nil
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.name] == t {
		delete(s.tasks, t.name)
	}
}

// Cancel stops the named task and waits for it. It reports whether a
// task with that name was running.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Tasks returns the names of running tasks, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close cancels every task, waits for all of them, and rejects new ones.
// It is safe to call multiple times.
func (s *Scheduler) Close() {
	s.Shutdown()
	s.Wait()
}

// Shutdown cancels every task and rejects new ones without waiting.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every task has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
