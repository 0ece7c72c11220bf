package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"acquire/pkg/common"
	"acquire/pkg/journal"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const defaultDedupeWindow = 1024

// Orchestrator reacts to download outcomes. All methods are safe for
// concurrent use.
type Orchestrator struct {
	downloads DownloadSubmitter
	tasks     TaskSubmitter
	notifier  Notifier
	failures  FailureReporter
	loc       Localizer
	journal   Journal
	metrics   *Metrics
	logger    *slog.Logger
	onSettled func(common.DownloadRequest, journal.State)

	seen *lru.Cache[uuid.UUID, struct{}]
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Downloads == nil:
		return nil, errors.New("orchestrator: download submitter is required")
	case opts.Tasks == nil:
		return nil, errors.New("orchestrator: task submitter is required")
	case opts.Notifier == nil:
		return nil, errors.New("orchestrator: notifier is required")
	case opts.Localizer == nil:
		return nil, errors.New("orchestrator: localizer is required")
	}

	window := opts.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}
	seen, err := lru.New[uuid.UUID, struct{}](window)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: dedupe cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}

	return &Orchestrator{
		downloads: opts.Downloads,
		tasks:     opts.Tasks,
		notifier:  opts.Notifier,
		failures:  opts.Failures,
		loc:       opts.Localizer,
		journal:   opts.Journal,
		metrics:   metrics,
		logger:    logger.With("component", "orchestrator"),
		onSettled: opts.OnSettled,
		seen:      seen,
	}, nil
}

// Run handles every outcome received on outcomes, each on its own goroutine,
// until the channel is closed or ctx is done. It waits for handlers in
// flight before returning.
func (o *Orchestrator) Run(ctx context.Context, outcomes <-chan common.DownloadOutcome) error {
	var g errgroup.Group
	for {
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), g.Wait())
		case out, ok := <-outcomes:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				o.OnDownloadOutcome(ctx, out)
				return nil
			})
		}
	}
}

// OnDownloadOutcome is the single entry point for a finished download. It
// never panics and never returns an error: every failure is logged, reported
// or recorded. An outcome whose request was already handled is ignored.
func (o *Orchestrator) OnDownloadOutcome(ctx context.Context, out common.DownloadOutcome) {
	req := out.Request
	h := &handling{log: o.logger.With(
		"request", req.ID,
		"lineage", req.Lineage,
		"game", req.GameID,
		"reason", req.Reason,
		"strategy", req.Strategy,
	)}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Panic while handling download outcome", "panic", r)
			o.settleAfterPanic(h, req, r)
		}
	}()

	// Requests without an ID cannot be told apart, so they skip the seen-set.
	if req.ID == uuid.Nil {
		h.log.Warn("Outcome has no request ID, duplicates cannot be detected")
	} else if previous, _ := o.seen.ContainsOrAdd(req.ID, struct{}{}); previous {
		o.metrics.duplicates.Inc()
		h.log.Warn("Outcome already handled, ignoring")
		return
	}

	o.metrics.inFlight.Inc()
	defer o.metrics.inFlight.Dec()

	action := Decide(out)
	o.metrics.actions.WithLabelValues(string(action)).Inc()

	switch action {
	case ActionIgnore:
		h.log.Info("Downloaded something for an unhandled reason")
		o.settle(h, req, journal.StateDone, "reason not handled")
	case ActionCancelled:
		h.log.Info("Download cancelled")
		o.settle(h, req, journal.StateDone, "cancelled")
	case ActionRetryFull:
		o.retryFull(ctx, h, out)
	case ActionReportFailure:
		o.reportFailure(h, req, out.Err)
	case ActionUpToDate:
		h.log.Info("Incremental download applied, nothing to install")
		o.settle(h, req, journal.StateDone, "patched in place")
	case ActionInstall:
		o.install(ctx, h, req)
	}
}

// handling carries per-outcome state through one OnDownloadOutcome call.
type handling struct {
	log *slog.Logger
	// settled is set once the lineage has been given a terminal state.
	settled bool
	// handedOff is set once a fallback request owns the lineage.
	handedOff bool
}

func (o *Orchestrator) retryFull(ctx context.Context, h *handling, out common.DownloadOutcome) {
	req := out.Request
	h.log.Warn("Incremental download failed, falling back to full download", "error", out.Err)

	next := FullFallback(req)
	o.record(h, req, journal.StatePending, fmt.Sprintf("incremental failed: %v", out.Err))

	if err := o.downloads.Submit(ctx, next); err != nil {
		// Without a fallback in flight nothing else will settle the lineage.
		h.log.Error("Could not submit full download", "error", err)
		o.reportFailure(h, next, err)
		return
	}
	h.handedOff = true
	o.record(h, next, journal.StatePending, "full download submitted")
	h.log.Info("Full download submitted", "next", next.ID, "attempt", next.Attempt)
}

func (o *Orchestrator) reportFailure(h *handling, req common.DownloadRequest, cause error) {
	h.log.Error("Download failed", "error", cause)

	msg := o.loc.T(KeyDownloadFailed, map[string]string{
		"title": req.Game.Title,
		"error": errorText(cause),
	})
	if o.failures != nil {
		o.failures.Fail(msg)
	}
	o.settle(h, req, journal.StateFailed, errorText(cause))
}

func (o *Orchestrator) install(ctx context.Context, h *handling, req common.DownloadRequest) {
	h.log.Info("Download finished, installing", "archive", req.DestPath)
	o.record(h, req, journal.StateInstalling, "")

	start := time.Now()
	res := o.tasks.Run(ctx, installRequest(req))
	o.metrics.installDuration.Observe(time.Since(start).Seconds())

	if !res.OK() {
		o.metrics.installs.WithLabelValues("error").Inc()
		h.log.Error("Install failed", "error", res.Err)
		o.settle(h, req, journal.StateDone, fmt.Sprintf("install failed: %v", res.Err))
		return
	}
	o.metrics.installs.WithLabelValues("ok").Inc()

	key := KeyInstalled
	if req.Reason == common.ReasonUpdate {
		key = KeyUpdated
	}
	o.notifier.Notify(o.loc.T(key, map[string]string{"title": req.Game.Title}))
	h.log.Info("Install complete")
	o.settle(h, req, journal.StateNotified, "")
}

// settle records a terminal state and fires the settled callback.
func (o *Orchestrator) settle(h *handling, req common.DownloadRequest, state journal.State, note string) {
	h.settled = true
	if o.onSettled != nil {
		defer o.onSettled(req, state)
	}
	o.record(h, req, state, note)
}

// settleAfterPanic fails the lineage unless it already settled or was handed
// to a fallback request. A second panic is logged and swallowed.
func (o *Orchestrator) settleAfterPanic(h *handling, req common.DownloadRequest, cause any) {
	if h.settled || h.handedOff {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Panic while settling lineage", "panic", r)
		}
	}()
	o.settle(h, req, journal.StateFailed, fmt.Sprintf("panic: %v", cause))
}

func (o *Orchestrator) record(h *handling, req common.DownloadRequest, state journal.State, note string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Transition(req, state, note); err != nil {
		h.log.Warn("Could not record lineage state", "state", state, "error", err)
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
