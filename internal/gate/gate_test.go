package gate

import (
	"testing"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_SizeBoundary(t *testing.T) {
	content := make([]byte, 100)

	// Exactly 1 MiB is accepted.
	require.Nil(t, Check("a.go", MaxFileSize, content))

	// 1 MiB + 1 byte is rejected.
	err := Check("a.go", MaxFileSize+1, content)
	require.NotNil(t, err)
	assert.Equal(t, errors.KindFileTooLarge, err.Kind)
}

func TestCheck_BinaryHeuristic_OnlyFirst8KiB(t *testing.T) {
	content := make([]byte, 10000)
	for i := range content {
		content[i] = 'a'
	}
	// Null byte at byte 9000 must NOT be classified as binary.
	content[9000] = 0

	err := Check("a.go", int64(len(content)), content)
	assert.Nil(t, err)
}

func TestCheck_BinaryHeuristic_WithinFirst8KiB(t *testing.T) {
	content := make([]byte, 10000)
	content[100] = 0

	err := Check("a.go", int64(len(content)), content)
	require.NotNil(t, err)
	assert.Equal(t, errors.KindInvalidEncoding, err.Kind)
}

func TestCheck_UnsupportedLanguage(t *testing.T) {
	err := Check("a.unknownext", 10, []byte("hi"))
	require.NotNil(t, err)
	assert.Equal(t, errors.KindUnsupportedLanguage, err.Kind)
}

func TestLanguageForPath(t *testing.T) {
	cases := map[string]model.Language{
		"main.py":       model.LanguagePython,
		"app.ts":        model.LanguageTypeScript,
		"app.tsx":       model.LanguageTypeScript,
		"index.js":      model.LanguageJavaScript,
		"component.jsx": model.LanguageJavaScript,
		"lib.rs":        model.LanguageRust,
		"main.go":       model.LanguageGo,
		"Main.java":     model.LanguageJava,
	}
	for path, want := range cases {
		got, ok := LanguageForPath(path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := LanguageForPath("README.md")
	assert.False(t, ok)
}

func TestIsTSX(t *testing.T) {
	assert.True(t, IsTSX("component.tsx"))
	assert.True(t, IsTSX("component.jsx"))
	assert.False(t, IsTSX("component.ts"))
}
