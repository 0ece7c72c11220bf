// Package lazyjson provides a thread-safe, lazy-loading manager for JSON files.
// It tracks modifications (dirty state) and writes atomically when saving to disk.
// acquire keeps its user settings and lineage journal in files managed here.
package lazyjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotLoaded is returned when saving data that was never loaded.
var ErrNotLoaded = errors.New("cannot save: data not loaded")

// Manager provides high-level control over a JSON-backed data structure.
// Data is only read from disk when first requested.
type Manager[T any] struct {
	path   string
	data   *T
	loaded bool
	dirty  bool
	mu     sync.RWMutex
	opts   options[T]
}

type options[T any] struct {
	indent          string
	fileMode        os.FileMode
	createIfMissing bool
	defaultValue    func() *T
}

// New creates a new Manager for the given file path.
func New[T any](path string, opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{
		path: path,
		opts: options[T]{
			indent:          "  ",
			fileMode:        0644,
			createIfMissing: true,
		},
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Path returns the file backing the manager.
func (m *Manager[T]) Path() string {
	return m.path
}

// Get returns the current data, loading it lazily if needed.
// The returned pointer must not be mutated; use Modify or Update instead.
func (m *Manager[T]) Get() (*T, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.data, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.data, nil
	}
	return m.data, m.loadLocked()
}

// View runs fn with read access to the data.
func (m *Manager[T]) View(fn func(*T) error) error {
	if _, err := m.Get(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.data)
}

// Modify executes fn with write access to the data and marks it dirty.
// When fn returns an error the dirty flag is left untouched.
func (m *Manager[T]) Modify(fn func(*T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modifyLocked(fn)
}

// Update is Modify followed by an atomic save, under a single lock.
func (m *Manager[T]) Update(fn func(*T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.modifyLocked(fn); err != nil {
		return err
	}
	return m.saveLocked()
}

// Save writes the data to disk if it's dirty.
func (m *Manager[T]) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}
	if !m.loaded {
		return ErrNotLoaded
	}
	return m.saveLocked()
}

// Reload forces a reload from disk, discarding any unsaved changes.
func (m *Manager[T]) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = false
	m.dirty = false
	m.data = nil
	return m.loadLocked()
}

// IsDirty returns true if the data has been modified since the last load/save.
func (m *Manager[T]) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// IsLoaded returns true if the data has been loaded from disk.
func (m *Manager[T]) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

func (m *Manager[T]) modifyLocked(fn func(*T) error) error {
	if !m.loaded {
		if err := m.loadLocked(); err != nil {
			return err
		}
	}
	if err := fn(m.data); err != nil {
		return err
	}
	m.dirty = true
	return nil
}

// Must be called with write lock held.
func (m *Manager[T]) loadLocked() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", m.path, err)
		}
		if !m.opts.createIfMissing {
			return fmt.Errorf("file not found: %w", err)
		}
		if m.opts.defaultValue != nil {
			m.data = m.opts.defaultValue()
		} else {
			m.data = new(T)
		}
		m.loaded = true
		m.dirty = true
		return nil
	}

	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", m.path, err)
	}
	m.data = &result
	m.loaded = true
	m.dirty = false
	return nil
}

// Must be called with write lock held.
func (m *Manager[T]) saveLocked() error {
	var (
		raw []byte
		err error
	)
	if m.opts.indent != "" {
		raw, err = json.MarshalIndent(m.data, "", m.opts.indent)
	} else {
		raw, err = json.Marshal(m.data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, m.opts.fileMode); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	m.dirty = false
	return nil
}
