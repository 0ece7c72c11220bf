package downloader

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type mockTask struct {
	lastPercent int
	lastMsg     string
}

func (m *mockTask) Log(msg string)                      {}
func (m *mockTask) SetStage(name string, target string) {}
func (m *mockTask) Progress(percent int, message string) {
	m.lastPercent = percent
	m.lastMsg = message
}
func (m *mockTask) Done() {}

func TestHTTPDownload(t *testing.T) {
	content := []byte("some large content to test download")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "acquire" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer ts.Close()

	d := NewDefaultDownloader()
	buf := &bytes.Buffer{}
	task := &mockTask{}

	if err := d.Download(context.Background(), ts.URL, buf, task); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("Content mismatch")
	}
	if task.lastPercent != 100 {
		t.Errorf("Expected 100%% progress, got %d", task.lastPercent)
	}
}

func TestHTTPRedirect(t *testing.T) {
	content := []byte("redirected content")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer ts.Close()

	rs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusMovedPermanently)
	}))
	defer rs.Close()

	d := NewDefaultDownloader()
	buf := &bytes.Buffer{}
	if err := d.Download(context.Background(), rs.URL, buf, &mockTask{}); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("Content mismatch, got %q", buf.String())
	}
}

func TestHTTPBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	err := NewDefaultDownloader().Download(context.Background(), ts.URL, &bytes.Buffer{}, &mockTask{})
	if err == nil || !strings.Contains(err.Error(), "bad status") {
		t.Errorf("Expected bad status error, got: %v", err)
	}
}

func TestFileDownload(t *testing.T) {
	src := filepath.Join(t.TempDir(), "mirror.bin")
	if err := os.WriteFile(src, []byte("local bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	task := &mockTask{}
	if err := NewDefaultDownloader().Download(context.Background(), "file://"+src, buf, task); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if buf.String() != "local bytes" {
		t.Errorf("Content mismatch, got %q", buf.String())
	}
	if task.lastPercent != 100 {
		t.Errorf("Expected 100%% progress, got %d", task.lastPercent)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	d := NewDefaultDownloader()
	err := d.Download(context.Background(), "ftp://example.com", &bytes.Buffer{}, &mockTask{})
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Errorf("Expected unsupported scheme error, got: %v", err)
	}
}
