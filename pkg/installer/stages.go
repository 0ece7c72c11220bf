package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"acquire/pkg/archive"
	"acquire/pkg/cache"
	"acquire/pkg/common"
	"acquire/pkg/display"
	"acquire/pkg/lazyjson"

	"github.com/dustin/go-humanize"
)

// ErrArchiveSize is returned when the archive on disk differs from the upload's declared size.
var ErrArchiveSize = errors.New("archive size does not match upload")

// Receipt records an installed build.
type Receipt struct {
	GameID      int64         `json:"game_id"`
	Title       string        `json:"title"`
	Upload      common.Upload `json:"upload"`
	Reason      common.Reason `json:"reason"`
	InstallPath string        `json:"install_path"`
	Files       int           `json:"files"`
	HandPicked  bool          `json:"hand_picked,omitempty"`
	InstalledAt time.Time     `json:"installed_at"`
}

// DefaultStages is the pipeline Install runs, in order.
var DefaultStages = []Stage{VerifyStage, ExtractStage, SwapStage, ReceiptStage, CleanupStage}

// VerifyStage checks that the archive exists, can be unpacked and has the declared size.
func VerifyStage(ctx context.Context, plan *Plan, task display.Task) error {
	task.SetStage("Verify", plan.ArchivePath)
	info, err := os.Stat(plan.ArchivePath)
	if err != nil {
		return fmt.Errorf("archive missing: %w", err)
	}
	if !archive.IsSupported(plan.ArchivePath) {
		return fmt.Errorf("unsupported archive format: %s", plan.ArchivePath)
	}
	if want := plan.Request.Upload.Size; want > 0 && info.Size() != want {
		return fmt.Errorf("%w: %s on disk, %s declared", ErrArchiveSize,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(want)))
	}
	return nil
}

// ExtractStage unpacks the archive into the staging directory.
func ExtractStage(ctx context.Context, plan *Plan, task display.Task) error {
	task.SetStage("Extract", plan.StagingPath)
	slog.Info("Extracting archive", "archive", plan.ArchivePath, "staging", plan.StagingPath)
	if err := os.RemoveAll(plan.StagingPath); err != nil {
		return err
	}
	if err := os.MkdirAll(plan.StagingPath, 0755); err != nil {
		return err
	}
	n, err := archive.Extract(ctx, plan.ArchivePath, plan.StagingPath)
	if err != nil {
		os.RemoveAll(plan.StagingPath)
		return err
	}
	plan.Files = n
	return nil
}

// SwapStage moves the staged build into place. The previous build is kept
// aside until the new one is in place and restored if the move fails.
func SwapStage(ctx context.Context, plan *Plan, task display.Task) error {
	task.SetStage("Swap", plan.InstallPath)
	if err := os.RemoveAll(plan.BackupPath); err != nil {
		return err
	}

	hadPrevious := false
	if _, err := os.Stat(plan.InstallPath); err == nil {
		if err := os.Rename(plan.InstallPath, plan.BackupPath); err != nil {
			return fmt.Errorf("failed to set previous build aside: %w", err)
		}
		hadPrevious = true
	}

	if err := os.Rename(plan.StagingPath, plan.InstallPath); err != nil {
		if hadPrevious {
			os.Rename(plan.BackupPath, plan.InstallPath)
		}
		return fmt.Errorf("failed to move build into place: %w", err)
	}

	if hadPrevious {
		return os.RemoveAll(plan.BackupPath)
	}
	return nil
}

// ReceiptStage writes the install receipt.
func ReceiptStage(ctx context.Context, plan *Plan, task display.Task) error {
	req := plan.Request
	return lazyjson.New[Receipt](plan.ReceiptPath).Update(func(r *Receipt) error {
		*r = Receipt{
			GameID:      req.GameID,
			Title:       req.Game.Title,
			Upload:      req.Upload,
			Reason:      req.Reason,
			InstallPath: plan.InstallPath,
			Files:       plan.Files,
			HandPicked:  req.HandPicked,
			InstalledAt: time.Now().UTC(),
		}
		return nil
	})
}

// CleanupStage removes the archive unless it should be kept.
func CleanupStage(ctx context.Context, plan *Plan, task display.Task) error {
	if plan.KeepArchive {
		return nil
	}
	if err := os.Remove(plan.ArchivePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove archive", "archive", plan.ArchivePath, "error", err)
	}
	return nil
}

// Install runs DefaultStages while holding the lock on the install directory.
func Install(ctx context.Context, plan *Plan, task display.Task) error {
	return cache.WithLock(ctx, plan.InstallPath, func() error {
		for _, stage := range DefaultStages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := stage(ctx, plan, task); err != nil {
				return fmt.Errorf("install %q: %w", plan.Request.Game.Title, err)
			}
		}
		slog.Info("Installation complete", "game", plan.Request.Game.Title,
			"path", plan.InstallPath, "files", plan.Files)
		return nil
	})
}

// ReadReceipt loads the receipt written for a game, if any.
func ReadReceipt(path string) (*Receipt, error) {
	return lazyjson.New(path, lazyjson.WithCreateIfMissing[Receipt](false)).Get()
}
