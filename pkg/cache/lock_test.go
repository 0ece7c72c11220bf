package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestLockSimple(t *testing.T) {
	target := filepath.Join(t.TempDir(), "game.zip")

	unlock, err := Lock(target)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	if _, err := os.Stat(target + ".lock"); os.IsNotExist(err) {
		t.Errorf("Lock file not created")
	}
	if err := unlock(); err != nil {
		t.Errorf("Failed to unlock: %v", err)
	}
	if _, err := os.Stat(target + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file should be gone")
	}
}

func deadPid() int {
	for i := 32000; i < 60000; i++ {
		proc, _ := os.FindProcess(i)
		if err := proc.Signal(syscall.Signal(0)); err == syscall.ESRCH {
			return i
		}
	}
	return 9999999
}

func TestLockStale(t *testing.T) {
	target := filepath.Join(t.TempDir(), "stale")
	content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), deadPid())
	if err := os.WriteFile(target+".lock", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unlock, err := LockContext(ctx, target)
	if err != nil {
		t.Fatalf("Failed to acquire lock over stale one: %v", err)
	}
	unlock()
}

func TestLockCorrupt(t *testing.T) {
	target := filepath.Join(t.TempDir(), "corrupt")
	if err := os.WriteFile(target+".lock", []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unlock, err := LockContext(ctx, target)
	if err != nil {
		t.Fatalf("Failed to acquire lock over corrupt one: %v", err)
	}
	unlock()
}

func TestLockContextGivesUp(t *testing.T) {
	target := filepath.Join(t.TempDir(), "held")
	unlock, err := Lock(target)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	// our own pid is alive, so the second caller has to wait
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = LockContext(ctx, target)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestLockConcurrent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "concurrent")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		unlock, err := Lock(target)
		if err != nil {
			t.Errorf("G1 failed to lock: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
		unlock()
	}()

	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		start := time.Now()
		unlock, err := Lock(target)
		if err != nil {
			t.Errorf("G2 failed to lock: %v", err)
			return
		}
		if d := time.Since(start); d < 300*time.Millisecond {
			t.Errorf("G2 acquired lock too fast (%v), expected waiting for G1", d)
		}
		unlock()
	}()

	wg.Wait()
}

func TestEnsure(t *testing.T) {
	target := filepath.Join(t.TempDir(), "ensure_target")

	var calls atomic.Int32
	fn := func() error {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return os.WriteFile(target, []byte("done"), 0644)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Ensure(target, fn); err != nil {
				t.Errorf("Ensure failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("Expected fn to be called once, got %d", n)
	}
}

func TestWithLockReleases(t *testing.T) {
	target := filepath.Join(t.TempDir(), "with")
	boom := errors.New("boom")
	if err := WithLock(context.Background(), target, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := os.Stat(target + ".lock"); !os.IsNotExist(err) {
		t.Error("lock should be released after fn returns")
	}
}

func TestBusy(t *testing.T) {
	target := filepath.Join(t.TempDir(), "game.zip")

	if busy, err := Busy(target); err != nil || busy {
		t.Fatalf("unlocked target: busy=%v err=%v", busy, err)
	}

	unlock, err := Lock(target)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	if busy, _ := Busy(target); !busy {
		t.Errorf("target locked by this process should be busy")
	}
	unlock()

	content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), deadPid())
	if err := os.WriteFile(target+".lock", []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if busy, _ := Busy(target); busy {
		t.Errorf("stale lock should not count")
	}
}
