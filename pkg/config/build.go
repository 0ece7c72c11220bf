package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Release builds set these with -ldflags "-X acquire/pkg/config.BuildVersion=...".
var (
	BuildVersion   = ""
	BuildTimestamp = ""
)

var readBuildInfo = debug.ReadBuildInfo

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string
	Revision string
	Time     string
	Modified bool
	Platform string
}

// ReadBuildInfo prefers the linker-provided values and falls back to the
// module and VCS data embedded by the Go toolchain.
func ReadBuildInfo() BuildInfo {
	b := BuildInfo{
		Version:  BuildVersion,
		Time:     BuildTimestamp,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := readBuildInfo(); ok {
		if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.Revision = s.Value
			case "vcs.time":
				if b.Time == "" {
					b.Time = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}
	if b.Version == "" {
		b.Version = "devel"
	}
	if b.Time == "" {
		b.Time = "unknown"
	}
	return b
}

func (b BuildInfo) String() string {
	rev := b.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		return fmt.Sprintf("acquire %s (%s) %s", b.Version, b.Time, b.Platform)
	}
	if b.Modified {
		rev += "-dirty"
	}
	return fmt.Sprintf("acquire %s (%s, %s) %s", b.Version, rev, b.Time, b.Platform)
}

// GetBuildInfo returns a one-line description of the running binary.
func GetBuildInfo() string {
	return ReadBuildInfo().String()
}
