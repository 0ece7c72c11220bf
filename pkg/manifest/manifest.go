// Package manifest reads the YAML list of downloads handed to `acquire run`.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"acquire/pkg/common"

	"gopkg.in/yaml.v3"
)

// Paths resolves where a download lands when the manifest does not say.
type Paths interface {
	ArchivePath(game common.Game, upload common.Upload) string
}

// Manifest is the YAML document.
type Manifest struct {
	Version   string  `yaml:"version,omitempty"`
	Locale    string  `yaml:"locale,omitempty"`
	Downloads []Entry `yaml:"downloads"`
}

// Entry describes one download.
type Entry struct {
	Reason      string              `yaml:"reason"`
	Strategy    string              `yaml:"strategy,omitempty"`
	Game        common.Game         `yaml:"game"`
	Upload      common.Upload       `yaml:"upload"`
	Dest        string              `yaml:"dest,omitempty"`
	DownloadKey *common.DownloadKey `yaml:"download_key,omitempty"`
	HandPicked  bool                `yaml:"hand_picked,omitempty"`
	UpgradePath []common.Patch      `yaml:"upgrade_path,omitempty"`
}

// ErrEmpty is returned for a manifest with no downloads.
var ErrEmpty = errors.New("manifest has no downloads")

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Downloads) == 0 {
		return nil, ErrEmpty
	}
	return &m, nil
}

// Requests converts every entry into a download request starting its own
// lineage. Entries without a dest are placed by paths.
func (m *Manifest) Requests(paths Paths) ([]common.DownloadRequest, error) {
	out := make([]common.DownloadRequest, 0, len(m.Downloads))
	for i, e := range m.Downloads {
		req, err := e.request(paths)
		if err != nil {
			return nil, fmt.Errorf("download %d (%s): %w", i, e.label(), err)
		}
		out = append(out, req)
	}
	return out, nil
}

func (e Entry) request(paths Paths) (common.DownloadRequest, error) {
	if e.Game.ID == 0 {
		return common.DownloadRequest{}, fmt.Errorf("game id is required")
	}
	if e.Upload.URL == "" {
		return common.DownloadRequest{}, fmt.Errorf("upload url is required")
	}
	strategy, err := common.ParseStrategy(e.Strategy)
	if err != nil {
		return common.DownloadRequest{}, err
	}

	dest := e.Dest
	if dest == "" && paths != nil {
		dest = paths.ArchivePath(e.Game, e.Upload)
	}
	reason := common.ParseReason(e.Reason)

	var req common.DownloadRequest
	if strategy == common.StrategyIncremental {
		req, err = common.NewIncrementalRequest(reason, e.Game, e.Upload, dest, e.UpgradePath)
		if err != nil {
			return common.DownloadRequest{}, err
		}
	} else {
		req = common.NewDownloadRequest(reason, e.Game, e.Upload, dest)
	}
	req.TotalSize = e.Upload.Size
	req.DownloadKey = e.DownloadKey
	req.HandPicked = e.HandPicked

	if err := req.Validate(); err != nil {
		return common.DownloadRequest{}, err
	}
	return req, nil
}

func (e Entry) label() string {
	if e.Game.Title != "" {
		return e.Game.Title
	}
	return fmt.Sprintf("game %d", e.Game.ID)
}
