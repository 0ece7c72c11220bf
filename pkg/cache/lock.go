package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	pollAlive = 200 * time.Millisecond
	pollRetry = 100 * time.Millisecond
)

// Lock locks target (file or folder) by creating target + ".lock".
// It blocks until the lock is acquired.
func Lock(target string) (func() error, error) {
	return LockContext(context.Background(), target)
}

// LockContext locks target, giving up when ctx is done.
// A lock file holds "<RFC3339 timestamp> <pid>". While the owning process is
// alive the caller waits; a lock left behind by a dead process is removed.
func LockContext(ctx context.Context, target string) (func() error, error) {
	lockFile := target + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent dir for lock: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), os.Getpid())
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				os.Remove(lockFile)
				return nil, fmt.Errorf("failed to write to lock file: %w", err)
			}
			f.Close()
			return func() error {
				return os.Remove(lockFile)
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		owner, err := readOwner(lockFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case errors.Is(err, errCorruptLock):
			os.Remove(lockFile)
			continue
		case err != nil:
			if err := sleep(ctx, pollRetry); err != nil {
				return nil, err
			}
			continue
		}

		if isPidAlive(owner) {
			if err := sleep(ctx, pollAlive); err != nil {
				return nil, err
			}
			continue
		}

		// stale: the owner died without unlocking
		os.Remove(lockFile)
	}
}

var errCorruptLock = errors.New("corrupt lock file")

func readOwner(lockFile string) (int, error) {
	content, err := os.ReadFile(lockFile)
	if err != nil {
		return 0, err
	}
	parts := strings.Fields(string(content))
	if len(parts) < 2 {
		return 0, errCorruptLock
	}
	pid, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, errCorruptLock
	}
	return pid, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isPidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false
	}

	// EPERM: the process exists but belongs to someone else.
	return true
}

// Busy reports whether a live process holds the lock on target.
// Stale and corrupt lock files do not count.
func Busy(target string) (bool, error) {
	owner, err := readOwner(target + ".lock")
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, errCorruptLock):
		return false, nil
	case err != nil:
		return false, err
	}
	return isPidAlive(owner), nil
}
