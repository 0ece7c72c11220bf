package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"acquire/pkg/archive"
	"acquire/pkg/cache"
	"acquire/pkg/common"
	"acquire/pkg/display"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Concurrency bounds the number of transfers in flight. Default 4.
	Concurrency int
	// Buffer is the capacity of the outcome channel. Default 64.
	Buffer int
	// InstallDir locates the installed build an incremental request patches.
	InstallDir func(common.Game) string
	// Display receives per-request progress. Nil discards it.
	Display display.Display
	Logger  *slog.Logger
}

// Runner executes download requests in the background. Every accepted
// request yields exactly one DownloadOutcome on Outcomes().
// Mutable
type Runner struct {
	dl   Downloader
	opts RunnerOptions
	log  *slog.Logger
	sem  *semaphore.Weighted

	base     context.Context
	stop     context.CancelCauseFunc
	outcomes chan common.DownloadOutcome
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	cancels map[uuid.UUID]context.CancelCauseFunc
}

// NewRunner creates a Runner backed by dl.
func NewRunner(dl Downloader, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	base, stop := context.WithCancelCause(context.Background())
	return &Runner{
		dl:       dl,
		opts:     opts,
		log:      log.With("component", "downloader"),
		sem:      semaphore.NewWeighted(int64(opts.Concurrency)),
		base:     base,
		stop:     stop,
		outcomes: make(chan common.DownloadOutcome, opts.Buffer),
		cancels:  make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// Outcomes delivers one outcome per accepted request. It is closed by Close.
// The consumer must keep draining it while transfers are in flight.
func (r *Runner) Outcomes() <-chan common.DownloadOutcome {
	return r.outcomes
}

// Submit validates req and starts it in the background. It returns once the
// request is accepted; the result arrives later on Outcomes().
func (r *Runner) Submit(ctx context.Context, req common.DownloadRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid download request %s: %w", req.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	if _, dup := r.cancels[req.ID]; dup {
		return fmt.Errorf("download request %s already in flight", req.ID)
	}

	rctx, cancel := context.WithCancelCause(r.base)
	r.cancels[req.ID] = cancel
	r.wg.Add(1)
	go r.run(rctx, req)

	r.log.Info("Download queued",
		"id", req.ID, "lineage", req.Lineage, "reason", req.Reason,
		"strategy", req.Strategy, "game", req.Game.Title)
	return nil
}

// Cancel stops an in-flight request. Its outcome carries common.ErrCancelled.
func (r *Runner) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel(common.ErrCancelled)
	}
	return ok
}

// Close stops accepting requests, waits for in-flight ones and closes Outcomes().
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	r.stop(nil)
	close(r.outcomes)
}

// Shutdown cancels every in-flight request, then closes the runner.
func (r *Runner) Shutdown() {
	r.stop(common.ErrCancelled)
	r.Close()
}

func (r *Runner) run(ctx context.Context, req common.DownloadRequest) {
	defer r.wg.Done()

	err := r.execute(ctx, req)
	if err != nil && ctx.Err() != nil && errors.Is(context.Cause(ctx), common.ErrCancelled) {
		err = fmt.Errorf("download %s: %w", req.ID, common.ErrCancelled)
	}

	r.mu.Lock()
	cancel := r.cancels[req.ID]
	delete(r.cancels, req.ID)
	r.mu.Unlock()
	cancel(nil)

	if err != nil {
		r.log.Warn("Download failed", "id", req.ID, "error", err)
	} else {
		r.log.Info("Download finished", "id", req.ID, "path", req.DestPath)
	}
	r.outcomes <- common.DownloadOutcome{Request: req, Err: err}
}

func (r *Runner) execute(ctx context.Context, req common.DownloadRequest) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	task := display.NopTask()
	if r.opts.Display != nil {
		task = r.opts.Display.StartTask(req.Game.Title)
	}
	defer task.Done()

	if req.Incremental() {
		return r.patch(ctx, req, task)
	}
	return r.fetchFull(ctx, req, task)
}

// fetchFull downloads the whole upload to req.DestPath via a .part file.
func (r *Runner) fetchFull(ctx context.Context, req common.DownloadRequest, task display.Task) error {
	if err := os.MkdirAll(filepath.Dir(req.DestPath), 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	return cache.WithLock(ctx, req.DestPath, func() error {
		task.SetStage("Download", filepath.Base(req.DestPath))
		return r.fetchTo(ctx, req.Upload.URL, req.DestPath, req.TotalSize, task)
	})
}

// patch applies each step of the upgrade path onto the installed build.
func (r *Runner) patch(ctx context.Context, req common.DownloadRequest, task display.Task) error {
	if r.opts.InstallDir == nil {
		return ErrNotInstalled
	}
	dir := r.opts.InstallDir(req.Game)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, dir)
	}

	staging := filepath.Dir(req.DestPath)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	return cache.WithLock(ctx, dir, func() error {
		for i, p := range req.UpgradePath {
			name, err := patchName(p)
			if err != nil {
				return err
			}
			tmp := filepath.Join(staging, name)

			task.SetStage(fmt.Sprintf("Patch %d/%d", i+1, len(req.UpgradePath)), name)
			if err := r.fetchTo(ctx, p.URL, tmp, p.Size, task); err != nil {
				return fmt.Errorf("patch %d: %w", p.BuildID, err)
			}
			n, err := archive.Extract(ctx, tmp, dir)
			os.Remove(tmp)
			if err != nil {
				return fmt.Errorf("apply patch %d: %w", p.BuildID, err)
			}
			r.log.Debug("Patch applied", "id", req.ID, "build", p.BuildID, "files", n)
		}
		return nil
	})
}

func patchName(p common.Patch) (string, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return "", fmt.Errorf("invalid patch uri: %w", err)
	}
	base := path.Base(u.Path)
	if !archive.IsSupported(base) {
		return "", fmt.Errorf("patch %d: unsupported archive %q", p.BuildID, base)
	}
	return fmt.Sprintf("patch-%d-%s", p.BuildID, base), nil
}

// fetchTo writes uri to dest atomically, checking the size when want > 0.
func (r *Runner) fetchTo(ctx context.Context, uri, dest string, want int64, task display.Task) error {
	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", part, err)
	}

	cw := &countingWriter{w: f}
	err = r.dl.Download(ctx, uri, cw, task)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && want > 0 && cw.n != want {
		err = fmt.Errorf("%w: got %s, want %s", ErrSizeMismatch,
			humanize.Bytes(uint64(cw.n)), humanize.Bytes(uint64(want)))
	}
	if err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
