package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"acquire/pkg/common"
	"acquire/pkg/lazyjson"

	"github.com/adrg/xdg"
)

// ReadOnly defines the read-only interface for Config.
// Immutable
type ReadOnly interface {
	GetCacheDir() string
	GetDataDir() string
	GetConfigDir() string
	GetStateDir() string
	GetDownloadDir() string
	GetAppsDir() string
	GetReceiptDir() string
	GetJournalPath() string
	GetSettingsPath() string
	Settings() Settings
	AppDir(game common.Game) string
	ArchivePath(game common.Game, upload common.Upload) string
	Freeze()
	Checkout() Writable
}

// Writable defines the writable interface for Config.
// Mutable
type Writable interface {
	ReadOnly
	SetCacheDir(string)
	SetDataDir(string)
	SetConfigDir(string)
	SetStateDir(string)
	SetSettings(Settings)
}

// Config holds the base directories and user settings for acquire.
// Mutable
type Config struct {
	cacheDir  string
	dataDir   string
	configDir string
	stateDir  string

	downloadDir  string
	appsDir      string
	receiptDir   string
	journalPath  string
	settingsPath string

	settings Settings

	frozen bool
	edited bool
}

var _ ReadOnly = (*Config)(nil)
var _ Writable = (*Config)(nil)

func (c *Config) GetCacheDir() string     { return c.cacheDir }
func (c *Config) GetDataDir() string      { return c.dataDir }
func (c *Config) GetConfigDir() string    { return c.configDir }
func (c *Config) GetStateDir() string     { return c.stateDir }
func (c *Config) GetDownloadDir() string  { return c.downloadDir }
func (c *Config) GetAppsDir() string      { return c.appsDir }
func (c *Config) GetReceiptDir() string   { return c.receiptDir }
func (c *Config) GetJournalPath() string  { return c.journalPath }
func (c *Config) GetSettingsPath() string { return c.settingsPath }
func (c *Config) Settings() Settings      { return c.settings }

func (c *Config) SetCacheDir(s string) {
	c.mustBeMutable()
	c.cacheDir = s
	c.updateDerived()
}

func (c *Config) SetDataDir(s string) {
	c.mustBeMutable()
	c.dataDir = s
	c.updateDerived()
}

func (c *Config) SetConfigDir(s string) {
	c.mustBeMutable()
	c.configDir = s
	c.updateDerived()
}

func (c *Config) SetStateDir(s string) {
	c.mustBeMutable()
	c.stateDir = s
	c.updateDerived()
}

func (c *Config) SetSettings(s Settings) {
	c.mustBeMutable()
	s.Normalize()
	c.settings = s
}

func (c *Config) Freeze() {
	c.frozen = true
}

func (c *Config) Checkout() Writable {
	if c.frozen {
		panic("cannot checkout from frozen config")
	}
	if c.edited {
		panic("config already checked out")
	}
	c.edited = true
	return c
}

func (c *Config) mustBeMutable() {
	if c.frozen {
		panic("cannot modify frozen config")
	}
}

func (c *Config) updateDerived() {
	c.downloadDir = filepath.Join(c.cacheDir, "downloads")
	c.appsDir = filepath.Join(c.dataDir, "apps")
	c.receiptDir = filepath.Join(c.dataDir, "receipts")
	c.journalPath = filepath.Join(c.stateDir, "journal.json")
	c.settingsPath = filepath.Join(c.configDir, "settings.json")
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// AppDir returns the install directory of a game.
func (c *Config) AppDir(game common.Game) string {
	name := slug(game.Title)
	if name == "" {
		return filepath.Join(c.appsDir, fmt.Sprintf("%d", game.ID))
	}
	return filepath.Join(c.appsDir, fmt.Sprintf("%d-%s", game.ID, name))
}

// ArchivePath returns where the archive of an upload is downloaded to.
func (c *Config) ArchivePath(game common.Game, upload common.Upload) string {
	name := filepath.Base(upload.Filename)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("%d-%d.bin", game.ID, upload.ID)
	}
	return filepath.Join(c.downloadDir, fmt.Sprintf("%d", upload.ID), name)
}

// Init initializes the configuration using XDG base directories and loads
// the user settings, creating the settings file on first run.
func Init() (ReadOnly, error) {
	c := &Config{
		cacheDir:  filepath.Join(xdg.CacheHome, "acquire"),
		dataDir:   filepath.Join(xdg.DataHome, "acquire"),
		configDir: filepath.Join(xdg.ConfigHome, "acquire"),
		stateDir:  filepath.Join(xdg.StateHome, "acquire"),
	}
	c.updateDerived()

	settings, err := LoadSettings(c.settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	c.settings = *settings

	return c, nil
}

// InitAt builds a configuration rooted at a single directory.
// Settings are defaults unless a settings.json exists under root/config.
func InitAt(root string) (ReadOnly, error) {
	c := &Config{
		cacheDir:  filepath.Join(root, "cache"),
		dataDir:   filepath.Join(root, "data"),
		configDir: filepath.Join(root, "config"),
		stateDir:  filepath.Join(root, "state"),
	}
	c.updateDerived()

	settings, err := LoadSettings(c.settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	c.settings = *settings

	return c, nil
}

// LoadSettings reads settings from path, writing defaults when missing.
func LoadSettings(path string) (*Settings, error) {
	mgr := lazyjson.New[Settings](path, lazyjson.WithDefaultValue(DefaultSettings))
	s, err := mgr.Get()
	if err != nil {
		return nil, err
	}
	if err := mgr.Save(); err != nil {
		return nil, err
	}
	out := *s
	out.Normalize()
	return &out, nil
}
