// Package cache guards filesystem targets shared between concurrent
// downloads and installs with PID lock files.
package cache

import (
	"context"
	"os"
)

// Ensure ensures that the target path exists by running fn if it doesn't.
// It uses locking to prevent multiple processes from running fn for the same target.
func Ensure(target string, fn func() error) error {
	return EnsureContext(context.Background(), target, fn)
}

// EnsureContext is Ensure with a cancellable wait for the lock.
func EnsureContext(ctx context.Context, target string, fn func() error) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	unlock, err := LockContext(ctx, target)
	if err != nil {
		return err
	}
	defer unlock()

	// another holder may have produced it while we waited
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	return fn()
}

// WithLock runs fn while holding the lock on target.
func WithLock(ctx context.Context, target string, fn func() error) error {
	unlock, err := LockContext(ctx, target)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
