package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQualifiedName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		lang Language
		want string
	}{
		{"rust path separators", "std::collections::HashMap", LanguageRust, "std.collections.HashMap"},
		{"go package path", "net/http.Client", LanguageGo, "net.http.Client"},
		{"python is identity", "app.services.UserService", LanguagePython, "app.services.UserService"},
		{"java is identity", "com.example.Main", LanguageJava, "com.example.Main"},
		{"simple name unchanged", "main", LanguageRust, "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQualifiedName(tt.in, tt.lang))
		})
	}
}

func TestToNativeQualifiedName_RustRoundTrip(t *testing.T) {
	native := "std::collections::HashMap"
	canonical := NormalizeQualifiedName(native, LanguageRust)
	assert.Equal(t, native, ToNativeQualifiedName(canonical, LanguageRust))
}

func TestToNativeQualifiedName_IdentityLanguagesRoundTrip(t *testing.T) {
	for _, lang := range []Language{LanguagePython, LanguageTypeScript, LanguageJavaScript, LanguageJava} {
		native := "pkg.sub.Thing"
		canonical := NormalizeQualifiedName(native, lang)
		assert.Equal(t, native, ToNativeQualifiedName(canonical, lang))
	}
}

func TestJoinQualifiedName(t *testing.T) {
	assert.Equal(t, "a.b.c", JoinQualifiedName("a", "b", "c"))
	assert.Equal(t, "solo", JoinQualifiedName("solo"))
}
