package orchestrator

import (
	"acquire/pkg/common"

	"github.com/google/uuid"
)

// FullFallback builds the full-download request that replaces a failed
// incremental one. Every surviving field is listed explicitly; the upgrade
// path is incremental-only and never carried over.
func FullFallback(req common.DownloadRequest) common.DownloadRequest {
	lineage := req.Lineage
	if lineage == uuid.Nil {
		lineage = req.ID
	}

	var key *common.DownloadKey
	if req.DownloadKey != nil {
		k := *req.DownloadKey
		key = &k
	}

	return common.DownloadRequest{
		ID:      uuid.New(),
		Lineage: lineage,
		Attempt: req.Attempt + 1,

		Reason:   req.Reason,
		Strategy: common.StrategyFull,

		GameID:    req.GameID,
		Game:      req.Game,
		Upload:    req.Upload,
		DestPath:  req.DestPath,
		TotalSize: req.Upload.Size,

		DownloadKey: key,
		HandPicked:  req.HandPicked,
	}
}

// installRequest builds the install task for a successful full download.
func installRequest(req common.DownloadRequest) common.TaskRequest {
	return common.TaskRequest{
		Name:        common.TaskInstall,
		GameID:      req.GameID,
		Game:        req.Game,
		Upload:      req.Upload,
		ArchivePath: req.DestPath,
		DownloadKey: req.DownloadKey,
		HandPicked:  req.HandPicked,
		Reason:      req.Reason,
	}
}
