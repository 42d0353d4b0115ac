// Package configs embeds the configuration templates shipped with the
// openace binary, so `openace init` works identically for source builds
// and binary releases.
//
// The layering these templates document (see internal/config.Load) is:
//
//  1. built-in defaults
//  2. user config (~/.config/openace/config.yaml)
//  3. project config (.openace.yaml in the project root)
//  4. OPENACE_* environment variables
package configs

import _ "embed"

// ProjectConfigTemplate is written by `openace init` as .openace.yaml in
// the project root. It holds project-scoped settings (path excludes,
// retrieval weights, chunking budget) meant to be version-controlled.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate documents the machine-level config at
// ~/.config/openace/config.yaml, applied to every project before its
// .openace.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
