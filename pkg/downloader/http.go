package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"acquire/pkg/display"

	"github.com/dustin/go-humanize"
)

// Immutable
type httpHandler struct {
	client    *http.Client
	userAgent string
}

// NewHTTPHandler returns a handler for http and https URIs.
// A nil client uses one without timeout; cancellation goes through the context.
func NewHTTPHandler(client *http.Client) SchemeHandler {
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	return &httpHandler{
		client:    client,
		userAgent: "acquire",
	}
}

func (h *httpHandler) Schemes() []string {
	return []string{"http", "https"}
}

func (h *httpHandler) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	pw := &progressWriter{
		task:  task,
		total: resp.ContentLength,
		start: time.Now(),
	}

	_, err = io.Copy(io.MultiWriter(w, pw), resp.Body)
	return err
}

// progressWriter reports transfer progress at most every reportEvery.
// Mutable
type progressWriter struct {
	task     display.Task
	total    int64
	written  int64
	start    time.Time
	reported time.Time
}

const reportEvery = 100 * time.Millisecond

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.written += int64(n)

	now := time.Now()
	finished := pw.total > 0 && pw.written >= pw.total
	if !finished && now.Sub(pw.reported) < reportEvery {
		return n, nil
	}
	pw.reported = now

	if pw.total > 0 {
		percent := int((float64(pw.written) / float64(pw.total)) * 100)
		elapsed := now.Sub(pw.start).Seconds()
		if elapsed <= 0 {
			elapsed = 1e-3
		}
		speed := float64(pw.written) / elapsed
		msg := fmt.Sprintf("%s / %s (%s/s)",
			humanize.Bytes(uint64(pw.written)),
			humanize.Bytes(uint64(pw.total)),
			humanize.Bytes(uint64(speed)))
		pw.task.Progress(percent, msg)
	} else {
		pw.task.Progress(0, fmt.Sprintf("%s downloaded", humanize.Bytes(uint64(pw.written))))
	}

	return n, nil
}
