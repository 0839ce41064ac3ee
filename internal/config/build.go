package config

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags at release time:
//
//	go build -ldflags "-X walkability/internal/config.version=1.2.3 \
//	    -X walkability/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X walkability/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/api
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

const shortRevisionLen = 7

// NewBuildInfo returns the linker-injected metadata. Without an injected
// commit, the VCS revision stamped by the go tool is used when available.
func NewBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
	if info.Commit == "none" {
		if rev, ok := vcsRevision(); ok {
			info.Commit = rev
		}
	}
	return info
}

// String formats the build for startup logs, e.g. "1.2.3 (a1b2c3d, 2024-03-09T00:00:00Z)".
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.BuildTime)
}

func vcsRevision() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > shortRevisionLen {
				return s.Value[:shortRevisionLen], true
			}
			return s.Value, true
		}
	}
	return "", false
}
