package downloader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"acquire/pkg/display"
)

// Mutable
type manager struct {
	handlers map[string]SchemeHandler
}

// NewDefaultDownloader returns a Downloader that handles http, https and file.
func NewDefaultDownloader() Downloader {
	return NewDownloader(NewHTTPHandler(nil), NewFileHandler())
}

// NewDownloader returns a Downloader dispatching on the given handlers.
// Later handlers win when two claim the same scheme.
func NewDownloader(handlers ...SchemeHandler) Downloader {
	m := &manager{
		handlers: make(map[string]SchemeHandler),
	}
	for _, h := range handlers {
		m.register(h)
	}
	return m
}

func (m *manager) register(h SchemeHandler) {
	for _, scheme := range h.Schemes() {
		m.handlers[strings.ToLower(scheme)] = h
	}
}

func (m *manager) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid uri: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	handler, ok := m.handlers[scheme]
	if !ok {
		return fmt.Errorf("unsupported scheme: %s", scheme)
	}

	return handler.Download(ctx, uri, w, task)
}
