package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"acquire/pkg/common"
	"acquire/pkg/config"
	"acquire/pkg/display"
	"acquire/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, files map[string]string) (config.ReadOnly, common.TaskRequest) {
	t.Helper()
	cfg, err := config.InitAt(t.TempDir())
	require.NoError(t, err)

	game := common.Game{ID: 5, Title: "Cave Story"}
	data := testutil.TarGz(t, files)
	upload := common.Upload{ID: 50, Filename: "cave.tar.gz", Size: int64(len(data))}
	archivePath := cfg.ArchivePath(game, upload)
	testutil.WriteFile(t, filepath.Dir(archivePath), filepath.Base(archivePath), data)

	return cfg, common.TaskRequest{
		Name:        common.TaskInstall,
		GameID:      game.ID,
		Game:        game,
		Upload:      upload,
		ArchivePath: archivePath,
		Reason:      common.ReasonInstall,
	}
}

func TestInstallFresh(t *testing.T) {
	cfg, req := setup(t, map[string]string{"cave/game.exe": "binary", "cave/data.pak": "data"})

	err := NewInstallTask(cfg).Run(context.Background(), req, display.NopTask())
	require.NoError(t, err)

	dir := cfg.AppDir(req.Game)
	content, err := os.ReadFile(filepath.Join(dir, "cave", "game.exe"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(content))

	assert.NoFileExists(t, req.ArchivePath, "archive should be removed")
	assert.NoDirExists(t, dir+".staging")
	assert.NoDirExists(t, dir+".old")

	receipt, err := ReadReceipt(filepath.Join(cfg.GetReceiptDir(), "5.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Files)
	assert.Equal(t, "Cave Story", receipt.Title)
	assert.Equal(t, common.ReasonInstall, receipt.Reason)
}

func TestInstallReplacesPreviousBuild(t *testing.T) {
	cfg, req := setup(t, map[string]string{"game.exe": "v2"})
	dir := cfg.AppDir(req.Game)
	testutil.WriteFile(t, dir, "game.exe", []byte("v1"))
	testutil.WriteFile(t, dir, "stale.dll", []byte("old"))

	req.Reason = common.ReasonUpdate
	require.NoError(t, NewInstallTask(cfg).Run(context.Background(), req, display.NopTask()))

	content, err := os.ReadFile(filepath.Join(dir, "game.exe"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
	assert.NoFileExists(t, filepath.Join(dir, "stale.dll"))
}

func TestInstallRejectsSizeMismatch(t *testing.T) {
	cfg, req := setup(t, map[string]string{"game.exe": "v2"})
	req.Upload.Size = 1

	err := NewInstallTask(cfg).Run(context.Background(), req, display.NopTask())
	assert.ErrorIs(t, err, ErrArchiveSize)
	assert.FileExists(t, req.ArchivePath, "archive kept for inspection")
	assert.NoDirExists(t, cfg.AppDir(req.Game))
}

func TestInstallKeepsPreviousBuildOnCorruptArchive(t *testing.T) {
	cfg, req := setup(t, map[string]string{"game.exe": "v2"})
	require.NoError(t, os.WriteFile(req.ArchivePath, []byte("not a tarball"), 0644))
	req.Upload.Size = 0

	dir := cfg.AppDir(req.Game)
	testutil.WriteFile(t, dir, "game.exe", []byte("v1"))

	err := NewInstallTask(cfg).Run(context.Background(), req, display.NopTask())
	assert.Error(t, err)
	content, err := os.ReadFile(filepath.Join(dir, "game.exe"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}

func TestInstallKeepArchives(t *testing.T) {
	cfg, req := setup(t, map[string]string{"game.exe": "v1"})
	w := cfg.Checkout()
	s := w.Settings()
	s.KeepArchives = true
	w.SetSettings(s)

	require.NoError(t, NewInstallTask(cfg).Run(context.Background(), req, display.NopTask()))
	assert.FileExists(t, req.ArchivePath)
}

func TestNewPlanRequiresArchive(t *testing.T) {
	cfg, req := setup(t, map[string]string{"a": "b"})
	req.ArchivePath = ""
	_, err := NewPlan(cfg, req)
	assert.Error(t, err)
}
