package orchestrator

import "acquire/pkg/common"

// Action is the decision taken for one outcome.
type Action string

const (
	// ActionIgnore: the reason is not one this core follows up on.
	ActionIgnore Action = "ignore"
	// ActionCancelled: the download was stopped on purpose.
	ActionCancelled Action = "cancelled"
	// ActionRetryFull: an incremental download failed; fall back to a full one.
	ActionRetryFull Action = "retry_full"
	// ActionReportFailure: a full download failed; this is terminal.
	ActionReportFailure Action = "report_failure"
	// ActionUpToDate: an incremental download already updated the install in place.
	ActionUpToDate Action = "up_to_date"
	// ActionInstall: a full download succeeded; run the install task.
	ActionInstall Action = "install"
)

// Decide evaluates the decision table for out. Rows are checked in order:
// reason, cancellation, then error and strategy.
func Decide(out common.DownloadOutcome) Action {
	req := out.Request
	if !req.Reason.Actionable() {
		return ActionIgnore
	}
	if out.Cancelled() {
		return ActionCancelled
	}
	if out.Failed() {
		if req.Incremental() {
			return ActionRetryFull
		}
		return ActionReportFailure
	}
	if req.Incremental() {
		return ActionUpToDate
	}
	return ActionInstall
}
