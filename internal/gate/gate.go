// Package gate implements the file-eligibility checks the full-index
// pipeline and the incremental engine both apply before parsing a file:
// size limit, binary-content heuristic, and language-extension mapping.
package gate

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
)

// MaxFileSize is the largest file the engine will index: 1 MiB.
const MaxFileSize = 1 << 20

// BinaryProbeWindow is the number of leading bytes inspected for the
// null-byte binary heuristic.
const BinaryProbeWindow = 8 * 1024

// extToLanguage is the fixed language-to-extension map.
var extToLanguage = map[string]model.Language{
	".py":   model.LanguagePython,
	".ts":   model.LanguageTypeScript,
	".tsx":  model.LanguageTypeScript,
	".js":   model.LanguageJavaScript,
	".jsx":  model.LanguageJavaScript,
	".rs":   model.LanguageRust,
	".go":   model.LanguageGo,
	".java": model.LanguageJava,
}

// LanguageForPath returns the supported language for a path's extension, or
// false if unsupported.
func LanguageForPath(path string) (model.Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// IsTSX reports whether a path should be parsed with the TSX grammar rather
// than plain TypeScript (.tsx and JSX both use the TSX grammar).
func IsTSX(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tsx" || ext == ".jsx"
}

// Check runs the full gate: size, binary heuristic, language support. It
// returns a typed EngineError describing the first rejection reason, or nil
// if the file is eligible for parsing.
func Check(path string, size int64, content []byte) *errors.EngineError {
	if size > MaxFileSize {
		return errors.New(errors.KindFileTooLarge, "file exceeds 1 MiB limit", nil).
			WithDetail("path", path)
	}

	probe := content
	if len(probe) > BinaryProbeWindow {
		probe = probe[:BinaryProbeWindow]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return errors.New(errors.KindInvalidEncoding, "binary content detected", nil).
			WithDetail("path", path)
	}

	if _, ok := LanguageForPath(path); !ok {
		return errors.New(errors.KindUnsupportedLanguage, "no language mapping for extension", nil).
			WithDetail("path", path)
	}

	return nil
}
