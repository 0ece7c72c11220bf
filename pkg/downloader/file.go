package downloader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"acquire/pkg/display"
)

// Immutable
type fileHandler struct{}

// NewFileHandler returns a handler for file:// URIs, used for local mirrors.
func NewFileHandler() SchemeHandler {
	return fileHandler{}
}

func (fileHandler) Schemes() []string {
	return []string{"file"}
}

func (fileHandler) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid uri: %w", err)
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	pw := &progressWriter{task: task, total: info.Size(), start: time.Now()}
	_, err = io.Copy(io.MultiWriter(w, pw), &ctxReader{ctx: ctx, r: f})
	return err
}

// ctxReader stops a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
