package agent

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// TaskFunc is one run of a periodic task.
type TaskFunc func(ctx context.Context)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// TaskRegistry owns the agent's periodic background tasks by name.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*task
	log   *slog.Logger
}

func NewTaskRegistry(logger *slog.Logger) *TaskRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRegistry{
		tasks: make(map[string]*task),
		log:   logger.With("component", "tasks"),
	}
}

// Schedule runs fn immediately and then every interval until cancelled. A
// task already registered under name is cancelled first.
func (r *TaskRegistry) Schedule(ctx context.Context, name string, every time.Duration, fn TaskFunc) {
	r.Cancel(name)

	ctx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.tasks[name] = t
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			r.runOnce(ctx, name, fn)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	r.log.Debug("task scheduled", "task", name, "every", every)
}

func (r *TaskRegistry) runOnce(ctx context.Context, name string, fn TaskFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task panicked", "task", name, "panic", rec)
		}
	}()
	if ctx.Err() != nil {
		return
	}
	fn(ctx)
}

// Cancel stops the named task and waits for it. Unknown names are ignored.
func (r *TaskRegistry) Cancel(name string) {
	r.mu.Lock()
	t, ok := r.tasks[name]
	delete(r.tasks, name)
	r.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// CancelAll stops every task and waits for them to return.
func (r *TaskRegistry) CancelAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = make(map[string]*task)
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

func (r *TaskRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
