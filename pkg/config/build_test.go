package config

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig, version, stamp := readBuildInfo, BuildVersion, BuildTimestamp
	t.Cleanup(func() {
		readBuildInfo, BuildVersion, BuildTimestamp = orig, version, stamp
	})
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestBuildInfoFromVCS(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	BuildVersion, BuildTimestamp = "", ""

	b := ReadBuildInfo()
	assert.Equal(t, "devel", b.Version)
	assert.Equal(t, "2026-10-01T12:00:00Z", b.Time)
	assert.Contains(t, b.String(), "acquire devel (0123456789ab-dirty, 2026-10-01T12:00:00Z) ")
}

func TestBuildInfoPrefersLinkerValues(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}})
	BuildVersion, BuildTimestamp = "v1.2.0", "2026-10-15"

	b := ReadBuildInfo()
	assert.Equal(t, "v1.2.0", b.Version)
	assert.Contains(t, GetBuildInfo(), "acquire v1.2.0 (2026-10-15) ")
}

func TestBuildInfoWithoutEmbeddedData(t *testing.T) {
	stubBuildInfo(t, nil)
	BuildVersion, BuildTimestamp = "", ""

	b := ReadBuildInfo()
	assert.Equal(t, "devel", b.Version)
	assert.Equal(t, "unknown", b.Time)
	assert.Empty(t, b.Revision)
}
