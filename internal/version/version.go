// Package version provides application version and build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version can be overridden by ldflags at build time.
	Version = "dev"
	// CommitHash can be overridden by ldflags at build time.
	CommitHash = ""
	// BuildTime can be overridden by ldflags at build time.
	BuildTime = ""
)

// Info is the build description served by /health and the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

var readVCS sync.Once

// Get returns the build info, filling commit and time from VCS stamping when
// ldflags did not set them.
func Get() Info {
	readVCS.Do(func() {
		if CommitHash != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				CommitHash = setting.Value
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	})
	return Info{Version: Version, Commit: CommitHash, BuildTime: BuildTime, GoVersion: runtime.Version()}
}

// GetInfo returns the version with a short commit hash, e.g. "v1.2.0 (3f2a9c1)".
func GetInfo() string {
	info := Get()
	if info.Commit == "" {
		return info.Version
	}
	short := info.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", info.Version, short)
}
