package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"acquire/pkg/config"
	"acquire/pkg/disk"
	"acquire/pkg/downloader"
	"acquire/pkg/i18n"
	"acquire/pkg/installer"
	"acquire/pkg/journal"
	"acquire/pkg/manifest"
	"acquire/pkg/orchestrator"
	"acquire/pkg/tasks"

	"github.com/dustin/go-humanize"
	"github.com/itchyny/gojq"
	"github.com/prometheus/client_golang/prometheus"
)

// exitInterrupted follows the shell convention for SIGINT.
const exitInterrupted = 130

type DefaultHandlers struct {
	Ctx context.Context
	Mgr *Managers
}

func (h *DefaultHandlers) Version(params *versionParams) Action {
	return func() (*ExecutionResult, error) {
		fmt.Fprintln(h.Mgr.Out, config.GetBuildInfo())
		return &ExecutionResult{ExitCode: 0}, nil
	}
}

func (h *DefaultHandlers) Run(params *runParams) Action {
	return func() (*ExecutionResult, error) {
		return runManifest(h.Ctx, h.Mgr, params)
	}
}

func (h *DefaultHandlers) Status(params *statusParams) Action {
	return func() (*ExecutionResult, error) {
		return runStatus(h.Ctx, h.Mgr, params)
	}
}

func (h *DefaultHandlers) DiskInfo(params *diskInfoParams) Action {
	return func() (*ExecutionResult, error) {
		return runDiskInfo(h.Mgr)
	}
}

func (h *DefaultHandlers) DiskClean(params *diskCleanParams) Action {
	return func() (*ExecutionResult, error) {
		return runDiskClean(h.Ctx, h.Mgr)
	}
}

func runManifest(ctx context.Context, mgr *Managers, params *runParams) (*ExecutionResult, error) {
	m, err := manifest.Load(params.Manifest)
	if err != nil {
		return nil, err
	}
	reqs, err := m.Requests(mgr.Cfg)
	if err != nil {
		return nil, err
	}

	settings := mgr.Cfg.Settings()
	locale := settings.Locale
	if m.Locale != "" {
		locale = m.Locale
	}
	loc, err := i18n.New(locale)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}

	runner := downloader.NewRunner(downloader.NewDefaultDownloader(), downloader.RunnerOptions{
		Concurrency: settings.MaxConcurrentDownloads,
		InstallDir:  mgr.Cfg.AppDir,
		Display:     mgr.Disp,
		Logger:      mgr.Logger,
	})
	taskRunner := tasks.NewRunner(mgr.Disp, mgr.Logger)
	taskRunner.Register(installer.NewInstallTask(mgr.Cfg))

	jrnl := journal.Open(mgr.Cfg.GetJournalPath())
	tracker := newSettleTracker(reqs)
	reg := prometheus.NewRegistry()

	orch, err := orchestrator.New(orchestrator.Options{
		Downloads:    runner,
		Tasks:        taskRunner,
		Notifier:     mgr.Disp,
		Failures:     mgr.Disp,
		Localizer:    loc,
		Journal:      jrnl,
		Metrics:      orchestrator.MustNewMetrics(reg),
		DedupeWindow: settings.DedupeWindow,
		Logger:       mgr.Logger,
		OnSettled:    tracker.settle,
	})
	if err != nil {
		runner.Close()
		return nil, err
	}

	// Outcomes are drained until the runner closes the channel, even after
	// ctx is done, so that cancelled transfers still settle their lineage.
	drained := make(chan error, 1)
	go func() {
		drained <- orch.Run(context.WithoutCancel(ctx), runner.Outcomes())
	}()

	for _, req := range reqs {
		if err := jrnl.Transition(req, journal.StatePending, "queued"); err != nil {
			mgr.Logger.Warn("Could not record download", "id", req.ID, "error", err)
		}
		if err := runner.Submit(ctx, req); err != nil {
			mgr.Disp.Fail(loc.T(orchestrator.KeyDownloadFailed, map[string]string{
				"title": req.Game.Title,
				"error": err.Error(),
			}))
			_ = jrnl.Transition(req, journal.StateFailed, err.Error())
			tracker.settle(req, journal.StateFailed)
		}
	}

	interrupted := false
	select {
	case <-tracker.Done():
		runner.Close()
	case <-ctx.Done():
		interrupted = true
		runner.Shutdown()
	}
	if err := <-drained; err != nil {
		return nil, err
	}

	if params.Metrics != "" {
		if err := prometheus.WriteToTextfile(params.Metrics, reg); err != nil {
			return nil, fmt.Errorf("error writing metrics: %w", err)
		}
	}

	if interrupted {
		return &ExecutionResult{ExitCode: exitInterrupted}, nil
	}
	if failed := tracker.Failed(); failed > 0 {
		mgr.Disp.Print(fmt.Sprintf("%d of %d downloads failed\n", failed, len(reqs)))
		return &ExecutionResult{ExitCode: 1}, nil
	}
	return &ExecutionResult{ExitCode: 0}, nil
}

func runStatus(ctx context.Context, mgr *Managers, params *statusParams) (*ExecutionResult, error) {
	entries, err := journal.Open(mgr.Cfg.GetJournalPath()).List()
	if err != nil {
		return nil, fmt.Errorf("error reading journal: %w", err)
	}

	if params.Query != "" {
		if err := queryEntries(ctx, mgr, entries, params.Query); err != nil {
			return nil, err
		}
		return &ExecutionResult{ExitCode: 0}, nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(mgr.Out, "No downloads recorded.")
		return &ExecutionResult{ExitCode: 0}, nil
	}

	theme := DefaultTheme()
	for _, e := range entries {
		fmt.Fprintf(mgr.Out, "%s %s %s %s\n",
			theme.State(e.State),
			theme.Styled(theme.Bold, e.Title),
			theme.Styled(theme.Dim, fmt.Sprintf("%d request(s)", len(e.Requests))),
			theme.Styled(theme.Dim, humanize.Time(e.UpdatedAt)),
		)
		if e.Note != "" {
			fmt.Fprintf(mgr.Out, "  %s %s\n", theme.BoxLast, e.Note)
		}
	}
	return &ExecutionResult{ExitCode: 0}, nil
}

// queryEntries runs a jq expression over the journal and prints each result
// as one line of JSON.
func queryEntries(ctx context.Context, mgr *Managers, entries []journal.Entry, expr string) error {
	q, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	// gojq only understands the generic JSON types.
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	enc := json.NewEncoder(mgr.Out)
	iter := q.RunWithContext(ctx, data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return err
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func runDiskInfo(mgr *Managers) (*ExecutionResult, error) {
	stats, total := disk.NewManager(mgr.Cfg, mgr.Logger).Info()
	theme := DefaultTheme()
	for _, s := range stats {
		fmt.Fprintf(mgr.Out, "%s %-10s %10s %6d  %s\n",
			theme.Bullet,
			theme.Styled(theme.Bold, s.Label),
			s.HumanSize(),
			s.Items,
			theme.Styled(theme.Dim, s.Path),
		)
	}
	fmt.Fprintf(mgr.Out, "Total: %s\n", humanize.IBytes(uint64(total)))
	return &ExecutionResult{ExitCode: 0}, nil
}

func runDiskClean(ctx context.Context, mgr *Managers) (*ExecutionResult, error) {
	cleaned, err := disk.NewManager(mgr.Cfg, mgr.Logger).Clean(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range cleaned {
		mgr.Disp.Log("Removed " + p)
	}
	fmt.Fprintf(mgr.Out, "Clean complete, %d item(s) removed\n", len(cleaned))
	return &ExecutionResult{ExitCode: 0}, nil
}
