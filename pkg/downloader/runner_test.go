package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"acquire/pkg/common"
	"acquire/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quest = common.Game{ID: 1, Title: "Quest"}

func next(t *testing.T, r *Runner) common.DownloadOutcome {
	t.Helper()
	select {
	case out, ok := <-r.Outcomes():
		require.True(t, ok, "outcome channel closed early")
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return common.DownloadOutcome{}
	}
}

func fullRequest(dir, url string, size int64) common.DownloadRequest {
	upload := common.Upload{ID: 10, Filename: "quest.zip", Size: size, URL: url}
	req := common.NewDownloadRequest(common.ReasonInstall, quest, upload, filepath.Join(dir, "quest.zip"))
	req.TotalSize = size
	return req
}

func TestRunnerFullDownload(t *testing.T) {
	payload := []byte("zip bytes")
	srv := testutil.NewServer(t, map[string][]byte{"/quest.zip": payload})
	r := NewRunner(NewDefaultDownloader(), RunnerOptions{})
	defer r.Close()

	req := fullRequest(t.TempDir(), srv.URL+"/quest.zip", int64(len(payload)))
	require.NoError(t, r.Submit(context.Background(), req))

	out := next(t, r)
	require.NoError(t, out.Err)
	assert.Equal(t, req.ID, out.Request.ID)

	got, err := os.ReadFile(req.DestPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoFileExists(t, req.DestPath+".part")
	assert.NoFileExists(t, req.DestPath+".lock")
}

func TestRunnerSizeMismatch(t *testing.T) {
	srv := testutil.NewServer(t, map[string][]byte{"/quest.zip": []byte("short")})
	r := NewRunner(NewDefaultDownloader(), RunnerOptions{})
	defer r.Close()

	req := fullRequest(t.TempDir(), srv.URL+"/quest.zip", 4096)
	require.NoError(t, r.Submit(context.Background(), req))

	out := next(t, r)
	assert.ErrorIs(t, out.Err, ErrSizeMismatch)
	assert.False(t, out.Cancelled())
	assert.NoFileExists(t, req.DestPath)
}

func TestRunnerHTTPError(t *testing.T) {
	srv := testutil.NewServer(t, nil)
	r := NewRunner(NewDefaultDownloader(), RunnerOptions{})
	defer r.Close()

	require.NoError(t, r.Submit(context.Background(), fullRequest(t.TempDir(), srv.URL+"/missing.zip", 0)))
	out := next(t, r)
	assert.Error(t, out.Err)
}

func TestRunnerIncrementalPatchesInstall(t *testing.T) {
	root := t.TempDir()
	installDir := filepath.Join(root, "apps", "quest")
	testutil.WriteFile(t, installDir, "game.txt", []byte("v1"))
	testutil.WriteFile(t, installDir, "data.txt", []byte("unchanged"))

	srv := testutil.NewServer(t, map[string][]byte{
		"/p2.tar.gz": testutil.TarGz(t, map[string]string{"game.txt": "v2"}),
		"/p3.tar.gz": testutil.TarGz(t, map[string]string{"game.txt": "v3", "new.txt": "added"}),
	})

	r := NewRunner(NewDefaultDownloader(), RunnerOptions{
		InstallDir: func(common.Game) string { return installDir },
	})
	defer r.Close()

	req, err := common.NewIncrementalRequest(common.ReasonUpdate, quest, common.Upload{ID: 10, Size: 4096},
		filepath.Join(root, "downloads", "quest.zip"),
		[]common.Patch{{BuildID: 2, URL: srv.URL + "/p2.tar.gz"}, {BuildID: 3, URL: srv.URL + "/p3.tar.gz"}})
	require.NoError(t, err)
	require.NoError(t, r.Submit(context.Background(), req))

	out := next(t, r)
	require.NoError(t, out.Err)
	for name, want := range map[string]string{"game.txt": "v3", "data.txt": "unchanged", "new.txt": "added"} {
		got, err := os.ReadFile(filepath.Join(installDir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), name)
	}
	assert.Equal(t, 1, srv.Hits("/p2.tar.gz"))
}

func TestRunnerIncrementalWithoutInstall(t *testing.T) {
	root := t.TempDir()
	r := NewRunner(NewDefaultDownloader(), RunnerOptions{
		InstallDir: func(common.Game) string { return filepath.Join(root, "nope") },
	})
	defer r.Close()

	req, err := common.NewIncrementalRequest(common.ReasonUpdate, quest, common.Upload{ID: 10},
		filepath.Join(root, "quest.zip"), []common.Patch{{BuildID: 2, URL: "http://invalid/p.tar.gz"}})
	require.NoError(t, err)
	require.NoError(t, r.Submit(context.Background(), req))
	assert.ErrorIs(t, next(t, r).Err, ErrNotInstalled)
}

func TestRunnerCancel(t *testing.T) {
	started := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer ts.Close()

	r := NewRunner(NewDefaultDownloader(), RunnerOptions{})
	defer r.Close()

	req := fullRequest(t.TempDir(), ts.URL+"/slow.zip", 1000)
	require.NoError(t, r.Submit(context.Background(), req))
	<-started
	assert.True(t, r.Cancel(req.ID))

	out := next(t, r)
	assert.True(t, out.Cancelled(), "got %v", out.Err)
	assert.ErrorIs(t, out.Err, common.ErrCancelled)
	assert.False(t, r.Cancel(req.ID), "finished requests are forgotten")
}

func TestRunnerRejects(t *testing.T) {
	r := NewRunner(NewDefaultDownloader(), RunnerOptions{})

	bad := fullRequest(t.TempDir(), "http://x/quest.zip", 0)
	bad.DestPath = ""
	assert.ErrorIs(t, r.Submit(context.Background(), bad), common.ErrMissingDestination)

	r.Close()
	assert.ErrorIs(t, r.Submit(context.Background(), fullRequest(t.TempDir(), "http://x/q.zip", 0)), ErrRunnerClosed)

	_, open := <-r.Outcomes()
	assert.False(t, open)
}
