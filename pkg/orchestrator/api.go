// Package orchestrator decides what happens once a download's outcome is
// known: retry as a full download, report a failure, chain into the install
// task and notify the user, or do nothing.
package orchestrator

import (
	"context"
	"log/slog"

	"acquire/pkg/common"
	"acquire/pkg/journal"
)

// DownloadSubmitter starts a download whose outcome arrives later, exactly once.
type DownloadSubmitter interface {
	Submit(ctx context.Context, req common.DownloadRequest) error
}

// TaskSubmitter executes a task and waits for its result.
type TaskSubmitter interface {
	Run(ctx context.Context, req common.TaskRequest) common.TaskResult
}

// Notifier delivers a success message to the user. Fire and forget.
type Notifier interface {
	Notify(body string)
}

// FailureReporter surfaces a terminal download failure to the user.
type FailureReporter interface {
	Fail(body string)
}

// Localizer formats a message key. It must be pure.
type Localizer interface {
	T(key string, params map[string]string) string
}

// Journal records lineage state transitions.
type Journal interface {
	Transition(req common.DownloadRequest, to journal.State, note string) error
}

// Message keys selected by the orchestrator.
const (
	KeyInstalled      = "notification.download_installed"
	KeyUpdated        = "notification.download_updated"
	KeyDownloadFailed = "notification.download_failed"
)

// Options wires an Orchestrator to its collaborators.
type Options struct {
	Downloads DownloadSubmitter
	Tasks     TaskSubmitter
	Notifier  Notifier
	Localizer Localizer

	// Failures defaults to logging only.
	Failures FailureReporter
	// Journal is optional.
	Journal Journal
	// Metrics defaults to collectors on the global Prometheus registry.
	Metrics *Metrics
	// DedupeWindow is how many handled request IDs are remembered. Default 1024.
	DedupeWindow int
	Logger       *slog.Logger

	// OnSettled is called once per lineage when it reaches a terminal state.
	OnSettled func(req common.DownloadRequest, state journal.State)
}
