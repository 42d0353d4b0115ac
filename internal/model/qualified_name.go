package model

import "strings"

// NormalizeQualifiedName converts a language-native qualified name to the
// dot-separated canonical form used for identity and cross-file lookups.
//
//   - Rust:  std::collections::HashMap -> std.collections.HashMap
//   - Go:    net/http.Client.Do        -> net.http.Client.Do
//   - others: already dot-separated, identity
func NormalizeQualifiedName(name string, lang Language) string {
	switch lang {
	case LanguageRust:
		return strings.ReplaceAll(name, "::", ".")
	case LanguageGo:
		return strings.ReplaceAll(name, "/", ".")
	default:
		return name
	}
}

// ToNativeQualifiedName renders a canonical dot-separated qualified name
// back into its language-native form, for display.
func ToNativeQualifiedName(canonical string, lang Language) string {
	switch lang {
	case LanguageRust:
		return strings.ReplaceAll(canonical, ".", "::")
	case LanguageGo:
		// Go package paths use '/' but member access uses '.'; without
		// package-boundary information we keep dots as a safe display form.
		return canonical
	default:
		return canonical
	}
}

// JoinQualifiedName joins scope segments into a canonical dot-separated
// qualified name.
func JoinQualifiedName(segments ...string) string {
	return strings.Join(segments, ".")
}
