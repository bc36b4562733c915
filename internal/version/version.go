package version

import (
	"runtime/debug"
	"sync"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/shindakun/diuportal/internal/version.version=v1.2.0"
var version string

var (
	gitCommit   string
	versionOnce sync.Once
)

// getVersionInfo returns the build version and the short commit hash
// recorded by the go toolchain
func getVersionInfo() (string, string) {
	versionOnce.Do(func() {
		if version == "" {
			version = "dev"
		}

		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				gitCommit = s.Value[:7]
			}
		}
	})
	return version, gitCommit
}

// GetVersion returns the version string with git commit if available
func GetVersion() string {
	ver, commit := getVersionInfo()
	if commit != "" && ver != "dev" {
		return ver + "-" + commit
	}
	return ver
}

// GetFullVersion returns version with commit info
func GetFullVersion() string {
	ver, commit := getVersionInfo()
	if commit != "" {
		return ver + " (commit: " + commit + ")"
	}
	return ver
}
