// Package installer implements the "install" task: it unpacks a downloaded
// archive into the game's install directory, replacing any previous build.
package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"acquire/pkg/common"
	"acquire/pkg/config"
	"acquire/pkg/display"
)

// Plan contains the full specification for one installation.
type Plan struct {
	// Request is the task request being executed.
	Request common.TaskRequest
	// ArchivePath is the downloaded archive to unpack.
	ArchivePath string
	// StagingPath receives the extracted files before they are swapped in.
	StagingPath string
	// InstallPath is the final destination directory for the game.
	InstallPath string
	// BackupPath holds the previous build while the swap is in progress.
	BackupPath string
	// ReceiptPath records what was installed.
	ReceiptPath string
	// KeepArchive leaves the archive in place after a successful install.
	KeepArchive bool

	// Files is the number of files extracted, set by ExtractStage.
	Files int
}

// Stage represents a single step in the installation pipeline.
type Stage func(ctx context.Context, plan *Plan, task display.Task) error

// NewPlan calculates the filesystem paths for installing req.
func NewPlan(cfg config.ReadOnly, req common.TaskRequest) (*Plan, error) {
	if req.ArchivePath == "" {
		return nil, fmt.Errorf("install %q: no archive path", req.Game.Title)
	}
	installPath := cfg.AppDir(req.Game)
	return &Plan{
		Request:     req,
		ArchivePath: req.ArchivePath,
		StagingPath: installPath + ".staging",
		InstallPath: installPath,
		BackupPath:  installPath + ".old",
		ReceiptPath: filepath.Join(cfg.GetReceiptDir(), fmt.Sprintf("%d.json", req.GameID)),
		KeepArchive: cfg.Settings().KeepArchives,
	}, nil
}

// InstallTask adapts the installer to the tasks.Task contract.
type InstallTask struct {
	cfg config.ReadOnly
}

// NewInstallTask returns the task registered under common.TaskInstall.
func NewInstallTask(cfg config.ReadOnly) *InstallTask {
	return &InstallTask{cfg: cfg}
}

func (t *InstallTask) Name() string {
	return common.TaskInstall
}

func (t *InstallTask) Run(ctx context.Context, req common.TaskRequest, progress display.Task) error {
	plan, err := NewPlan(t.cfg, req)
	if err != nil {
		return err
	}
	return Install(ctx, plan, progress)
}
