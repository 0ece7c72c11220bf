// Package common provides the shared domain types used across acquire.
// It describes download requests, their outcomes, and the uniform task
// contract used to chain work after a download finishes.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrCancelled marks a download or task that was stopped on purpose.
	ErrCancelled = errors.New("cancelled")
	// ErrMissingUpgradePath is returned when an incremental request has no patches to apply.
	ErrMissingUpgradePath = errors.New("incremental download requires an upgrade path")
	// ErrMissingDestination is returned when a request has nowhere to write.
	ErrMissingDestination = errors.New("download request has no destination path")
	// ErrMissingID is returned for a request without an identity.
	ErrMissingID = errors.New("download request has no ID")
)

// Reason explains why a download exists.
type Reason string

const (
	// ReasonInstall is a first-time install of a game.
	ReasonInstall Reason = "install"
	// ReasonUpdate replaces an installed build with a newer one.
	ReasonUpdate Reason = "update"
)

// Actionable reports whether outcomes for this reason are followed up on.
func (r Reason) Actionable() bool {
	return r == ReasonInstall || r == ReasonUpdate
}

// String returns the string representation of the Reason.
func (r Reason) String() string {
	return string(r)
}

// ParseReason normalizes a reason string. Unknown reasons are kept verbatim.
func ParseReason(s string) Reason {
	return Reason(strings.ToLower(strings.TrimSpace(s)))
}

// Strategy selects how the bytes of a build are transferred.
type Strategy string

const (
	// StrategyFull transfers the complete upload.
	StrategyFull Strategy = "full"
	// StrategyIncremental applies a chain of patches to an installed build.
	StrategyIncremental Strategy = "incremental"
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy converts a string into a Strategy. Empty means full.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return StrategyFull, nil
	case "incremental", "delta", "patch":
		return StrategyIncremental, nil
	default:
		return "", fmt.Errorf("unsupported strategy: %s", s)
	}
}

// Game identifies the content being fetched.
type Game struct {
	ID    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Upload is the artifact metadata for a downloadable build.
type Upload struct {
	ID       int64  `json:"id" yaml:"id"`
	Filename string `json:"filename" yaml:"filename"`
	// Size is the declared total size in bytes.
	Size int64  `json:"size" yaml:"size"`
	URL  string `json:"url" yaml:"url"`
}

// Patch is one step of an upgrade path.
type Patch struct {
	BuildID int64  `json:"build_id" yaml:"build_id"`
	URL     string `json:"url" yaml:"url"`
	Size    int64  `json:"size" yaml:"size"`
}

// DownloadKey is the credential that grants access to a purchased upload.
type DownloadKey struct {
	ID    int64 `json:"id" yaml:"id"`
	Owner int64 `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
}

// DownloadRequest describes one download attempt.
// A retried request is a new value with its own ID sharing the Lineage of the original.
type DownloadRequest struct {
	ID      uuid.UUID `json:"id"`
	Lineage uuid.UUID `json:"lineage"`
	// Attempt is 0 for the first request of a lineage.
	Attempt int `json:"attempt"`

	Reason   Reason   `json:"reason"`
	Strategy Strategy `json:"strategy"`

	GameID   int64  `json:"game_id"`
	Game     Game   `json:"game"`
	Upload   Upload `json:"upload"`
	DestPath string `json:"dest_path"`
	// TotalSize is the expected byte count, 0 when unknown.
	TotalSize int64 `json:"total_size,omitempty"`

	DownloadKey *DownloadKey `json:"download_key,omitempty"`
	HandPicked  bool         `json:"hand_picked,omitempty"`

	// UpgradePath is only meaningful for incremental requests.
	UpgradePath []Patch `json:"upgrade_path,omitempty"`
}

// NewDownloadRequest creates a full download request starting a new lineage.
func NewDownloadRequest(reason Reason, game Game, upload Upload, destPath string) DownloadRequest {
	id := uuid.New()
	return DownloadRequest{
		ID:       id,
		Lineage:  id,
		Reason:   reason,
		Strategy: StrategyFull,
		GameID:   game.ID,
		Game:     game,
		Upload:   upload,
		DestPath: destPath,
	}
}

// NewIncrementalRequest creates an incremental request starting a new lineage.
func NewIncrementalRequest(reason Reason, game Game, upload Upload, destPath string, path []Patch) (DownloadRequest, error) {
	if len(path) == 0 {
		return DownloadRequest{}, ErrMissingUpgradePath
	}
	req := NewDownloadRequest(reason, game, upload, destPath)
	req.Strategy = StrategyIncremental
	req.UpgradePath = append([]Patch(nil), path...)
	return req, nil
}

// Incremental reports whether the request is a delta transfer.
func (r DownloadRequest) Incremental() bool {
	return r.Strategy == StrategyIncremental
}

// Validate checks the structural invariants of a request.
func (r DownloadRequest) Validate() error {
	if r.ID == uuid.Nil {
		return ErrMissingID
	}
	if r.DestPath == "" {
		return ErrMissingDestination
	}
	switch r.Strategy {
	case StrategyIncremental:
		if len(r.UpgradePath) == 0 {
			return ErrMissingUpgradePath
		}
	case StrategyFull:
		if len(r.UpgradePath) != 0 {
			return fmt.Errorf("full download %s carries an upgrade path", r.ID)
		}
	default:
		return fmt.Errorf("unsupported strategy: %q", r.Strategy)
	}
	return nil
}

// DownloadOutcome is delivered exactly once per DownloadRequest.
type DownloadOutcome struct {
	Request DownloadRequest
	// Err is nil iff the download succeeded.
	Err error
}

// Failed reports whether the download ended with an error.
func (o DownloadOutcome) Failed() bool {
	return o.Err != nil
}

// Cancelled reports whether the failure was a deliberate cancellation.
func (o DownloadOutcome) Cancelled() bool {
	return IsCancelled(o.Err)
}

// IsCancelled reports whether err stems from a cancellation.
func IsCancelled(err error) bool {
	return err != nil && (errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled))
}

// TaskInstall is the name of the task chained after a full download.
const TaskInstall = "install"

// TaskRequest is the uniform description of a unit of work.
type TaskRequest struct {
	Name        string       `json:"name"`
	GameID      int64        `json:"game_id"`
	Game        Game         `json:"game"`
	Upload      Upload       `json:"upload"`
	ArchivePath string       `json:"archive_path"`
	DownloadKey *DownloadKey `json:"download_key,omitempty"`
	HandPicked  bool         `json:"hand_picked,omitempty"`
	// Reason is carried so tasks can tell a fresh install from an update.
	Reason Reason `json:"reason,omitempty"`
}

// TaskResult is the outcome of a task. Err is surfaced verbatim.
type TaskResult struct {
	Err error
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool {
	return r.Err == nil
}
