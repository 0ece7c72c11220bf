// Package disk reports and reclaims the local storage used by acquire.
package disk

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"acquire/pkg/cache"
	"acquire/pkg/config"

	"github.com/dustin/go-humanize"
)

// Leftover suffixes written by interrupted downloads and installs.
var leftoverSuffixes = []string{".part", ".staging", ".old", ".lock"}

// Manager inspects the directories of a configuration.
type Manager struct {
	cfg config.ReadOnly
	log *slog.Logger
}

// NewManager creates a disk manager for cfg.
func NewManager(cfg config.ReadOnly, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, log: logger.With("component", "disk")}
}

// Usage represents disk usage information for a specific category of data.
type Usage struct {
	Label string
	Size  int64
	Items int
	Path  string
}

// HumanSize formats the size for display.
func (u Usage) HumanSize() string {
	return humanize.IBytes(uint64(u.Size))
}

// Info returns the usage of each storage area and the total size.
func (m *Manager) Info() ([]Usage, int64) {
	areas := []struct{ label, path string }{
		{"Downloads", m.cfg.GetDownloadDir()},
		{"Apps", m.cfg.GetAppsDir()},
		{"Receipts", m.cfg.GetReceiptDir()},
		{"State", m.cfg.GetStateDir()},
	}
	var total int64
	stats := make([]Usage, 0, len(areas))
	for _, a := range areas {
		size, count := DirSize(a.path)
		total += size
		stats = append(stats, Usage{Label: a.label, Size: size, Items: count, Path: a.path})
	}
	return stats, total
}

// Clean removes downloaded archives and the leftovers of interrupted
// installs. Installed games are kept. Paths held by another process's lock
// are skipped.
func (m *Manager) Clean(ctx context.Context) ([]string, error) {
	var cleaned []string

	entries, err := os.ReadDir(m.cfg.GetDownloadDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read downloads: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(m.cfg.GetDownloadDir(), e.Name())
		if m.remove(ctx, path) {
			cleaned = append(cleaned, path)
		}
	}

	apps, err := os.ReadDir(m.cfg.GetAppsDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read apps: %w", err)
	}
	for _, e := range apps {
		if !isLeftover(e.Name()) {
			continue
		}
		path := filepath.Join(m.cfg.GetAppsDir(), e.Name())
		if m.remove(ctx, path) {
			cleaned = append(cleaned, path)
		}
	}
	return cleaned, nil
}

func (m *Manager) remove(ctx context.Context, path string) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if inUse(path) {
		m.log.Info("Skipping path in use", "path", path)
		return false
	}
	if err := os.RemoveAll(path); err != nil {
		m.log.Warn("Could not remove", "path", path, "error", err)
		return false
	}
	m.log.Info("Cleaning", "path", path)
	return true
}

// inUse reports whether path, the target it is a leftover of, or anything
// below it is locked by a live process.
func inUse(path string) bool {
	targets := []string{path}
	for _, s := range leftoverSuffixes {
		if strings.HasSuffix(path, s) {
			targets = append(targets, strings.TrimSuffix(path, s))
		}
	}
	for _, t := range targets {
		if busy, err := cache.Busy(t); err != nil || busy {
			return true
		}
	}

	busy := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(p, ".lock") {
			if b, err := cache.Busy(strings.TrimSuffix(p, ".lock")); err != nil || b {
				busy = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	return busy
}

func isLeftover(name string) bool {
	for _, s := range leftoverSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// DirSize calculates the total size and item count of a directory.
func DirSize(path string) (int64, int) {
	var size int64
	var count int
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count
}
