// Package version provides build and version information for openace.
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version, injected at build time via
// -X github.com/Kosthi/openace/pkg/version.Version. Defaults to dev for
// source builds.
var Version = "dev"

var (
	// Commit is the short git commit hash, injected via ldflags.
	Commit = "unknown"

	// Date is the build date in RFC3339 format, injected via ldflags.
	Date = "unknown"

	// GoVersion is the Go toolchain that built the binary.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the full single-line version string.
func String() string {
	return fmt.Sprintf("openace %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
