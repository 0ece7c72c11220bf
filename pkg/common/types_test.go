package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":            StrategyFull,
		"FULL":        StrategyFull,
		"incremental": StrategyIncremental,
		" patch ":     StrategyIncremental,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("torrent")
	assert.Error(t, err)
}

func TestReasonActionable(t *testing.T) {
	assert.True(t, ParseReason("Install").Actionable())
	assert.True(t, ReasonUpdate.Actionable())
	assert.False(t, ParseReason("reinstall").Actionable())
	assert.False(t, Reason("").Actionable())
}

func TestNewIncrementalRequestRequiresPath(t *testing.T) {
	_, err := NewIncrementalRequest(ReasonUpdate, Game{ID: 1}, Upload{ID: 2}, "/tmp/x", nil)
	assert.ErrorIs(t, err, ErrMissingUpgradePath)

	req, err := NewIncrementalRequest(ReasonUpdate, Game{ID: 1}, Upload{ID: 2}, "/tmp/x", []Patch{{BuildID: 3}})
	require.NoError(t, err)
	assert.True(t, req.Incremental())
	assert.Equal(t, req.ID, req.Lineage)
	assert.Equal(t, int64(1), req.GameID)
	assert.NoError(t, req.Validate())
}

func TestValidate(t *testing.T) {
	req := NewDownloadRequest(ReasonInstall, Game{ID: 1}, Upload{ID: 2}, "")
	assert.ErrorIs(t, req.Validate(), ErrMissingDestination)

	req.DestPath = "/tmp/a.zip"
	assert.NoError(t, req.Validate())

	req.UpgradePath = []Patch{{BuildID: 1}}
	assert.Error(t, req.Validate())

	req.Strategy = StrategyIncremental
	assert.NoError(t, req.Validate())

	req.UpgradePath = nil
	assert.ErrorIs(t, req.Validate(), ErrMissingUpgradePath)

	req.UpgradePath = []Patch{{BuildID: 1}}
	req.ID = uuid.Nil
	assert.ErrorIs(t, req.Validate(), ErrMissingID)
}

func TestOutcomeCancelled(t *testing.T) {
	assert.False(t, DownloadOutcome{}.Cancelled())
	assert.False(t, DownloadOutcome{Err: errors.New("boom")}.Cancelled())
	assert.True(t, DownloadOutcome{Err: fmt.Errorf("transfer: %w", ErrCancelled)}.Cancelled())
	assert.True(t, DownloadOutcome{Err: fmt.Errorf("transfer: %w", context.Canceled)}.Cancelled())
}
