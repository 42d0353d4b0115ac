// Package scanner walks a project directory discovering indexable files,
// honoring gitignore rules, a fixed vendor-directory deny list, and
// generated-file name patterns.
package scanner

import "strings"

// ScanOptions configures a single scan pass.
type ScanOptions struct {
	// RootDir is the project root directory to scan.
	RootDir string

	// Workers is not read by Scan; the walk runs on a single goroutine.
	Workers int

	// FollowSymlinks is not read by Scan; symbolic links are always
	// skipped.
	FollowSymlinks bool
}

// ScanResult streams a single discovered file. Scan skips entries the walk
// cannot read and does not set Err.
type ScanResult struct {
	Path string // relative to RootDir, forward-slash normalized
	Size int64
	Err  error
}

// vendorDirDenyList are directory names never descended into, regardless of
// gitignore state.
var vendorDirDenyList = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"third_party":  true,
	".venv":        true,
	"venv":         true,
}

// generatedPatterns are substrings that mark a file as generated and
// therefore excluded from scanning.
var generatedPatterns = []string{
	".generated.",
	".min.js",
	".min.css",
	"_pb2.py",
	".pb.go",
}

// isGenerated reports whether baseName matches one of the fixed
// generated-file substrings.
func isGenerated(baseName string) bool {
	for _, p := range generatedPatterns {
		if strings.Contains(baseName, p) {
			return true
		}
	}
	return false
}
