// Package buildinfo reports the version stamped into the hostctl binary.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// These values are overridden at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders a single-line version banner for --version output.
func String() string {
	return fmt.Sprintf("hostctl %s (commit %s, built %s)", Version, commit(), Date)
}

// commit prefers the -ldflags value and falls back to the VCS revision
// embedded by the toolchain for plain `go build` binaries.
func commit() string {
	if Commit != "none" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return Commit
}
