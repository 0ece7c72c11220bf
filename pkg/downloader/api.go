// Package downloader retrieves remote builds and patches.
// Downloader moves bytes for a single URI; Runner executes whole download
// requests in the background and reports each one's outcome exactly once.
package downloader

import (
	"context"
	"errors"
	"io"

	"acquire/pkg/display"
)

var (
	// ErrRunnerClosed is returned when submitting to a closed Runner.
	ErrRunnerClosed = errors.New("download runner is closed")
	// ErrSizeMismatch is returned when the transferred byte count differs from the declared size.
	ErrSizeMismatch = errors.New("downloaded size does not match declared size")
	// ErrNotInstalled is returned when an incremental download has no build to patch.
	ErrNotInstalled = errors.New("no installed build to patch")
)

// Downloader manages the retrieval of resources from various URIs.
type Downloader interface {
	// Download retrieves the resource at the specified URI and writes it to w.
	// It uses the provided display Task to report progress and logs.
	Download(ctx context.Context, uri string, w io.Writer, task display.Task) error
}

// SchemeHandler defines the interface for handling specific URI schemes (e.g., "http://").
type SchemeHandler interface {
	// Download executes the download for a URI supported by this handler.
	Download(ctx context.Context, uri string, w io.Writer, task display.Task) error
	// Schemes returns the list of URI schemes (e.g., ["http", "https"]) this handler can process.
	Schemes() []string
}
