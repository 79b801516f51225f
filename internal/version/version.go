// Package version holds build metadata for the docchat binary, injected with
// -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/docchat-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/docchat-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/docchat-go/internal/version.BuildDate=2026-01-01" \
//	    ./cmd/docchat
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata. Local builds keep the defaults.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata as printed by `docchat version`. When
// Commit was not injected, the VCS revision recorded by the Go toolchain is
// used if present.
func String() string {
	commit := Commit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return fmt.Sprintf("docchat %s (commit: %s, built: %s)", Version, commit, BuildDate)
}

// vcsRevision returns the short vcs.revision build setting, or "".
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 7 {
				return s.Value[:7]
			}
			return s.Value
		}
	}
	return ""
}
