// Package tasks executes named units of work, such as "install", that are
// chained after a download completes.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"acquire/pkg/common"
	"acquire/pkg/display"
)

// ErrUnknownTask is returned for a TaskRequest naming no registered task.
var ErrUnknownTask = errors.New("unknown task")

// Task is a named, long-running, cancellable unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context, req common.TaskRequest, progress display.Task) error
}

// Runner dispatches TaskRequests to registered tasks.
// Mutable
type Runner struct {
	mu    sync.RWMutex
	tasks map[string]Task
	disp  display.Display
	log   *slog.Logger
}

// NewRunner creates an empty Runner. disp may be nil.
func NewRunner(disp display.Display, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		tasks: make(map[string]Task),
		disp:  disp,
		log:   logger.With("component", "tasks"),
	}
}

// Register adds t, replacing any task with the same name.
func (r *Runner) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name()] = t
}

// Names lists the registered task names in order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the task named by req and waits for it. Failures, including
// panics inside the task, are returned in the result rather than raised.
func (r *Runner) Run(ctx context.Context, req common.TaskRequest) (res common.TaskResult) {
	r.mu.RLock()
	t, ok := r.tasks[req.Name]
	r.mu.RUnlock()
	if !ok {
		return common.TaskResult{Err: fmt.Errorf("%w: %q", ErrUnknownTask, req.Name)}
	}

	progress := display.NopTask()
	if r.disp != nil {
		progress = r.disp.StartTask(fmt.Sprintf("%s %s", req.Name, req.Game.Title))
	}
	defer progress.Done()

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Task panicked", "task", req.Name, "panic", p, "stack", string(debug.Stack()))
			res = common.TaskResult{Err: fmt.Errorf("task %s panicked: %v", req.Name, p)}
		}
	}()

	start := time.Now()
	r.log.Info("Task started", "task", req.Name, "game", req.Game.Title)
	err := t.Run(ctx, req, progress)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", common.ErrCancelled, err)
	}
	r.log.Info("Task finished", "task", req.Name, "game", req.Game.Title,
		"duration", time.Since(start).Round(time.Millisecond), "ok", err == nil)
	return common.TaskResult{Err: err}
}
