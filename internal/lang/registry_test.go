package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kosthi/openace/internal/model"
)

func TestRegistry_AllLanguagesRegistered(t *testing.T) {
	r := NewRegistry()

	for _, l := range []model.Language{
		model.LanguageGo,
		model.LanguagePython,
		model.LanguageTypeScript,
		model.LanguageJavaScript,
		model.LanguageRust,
		model.LanguageJava,
	} {
		grammar, spec, ok := r.ForLanguage(l, false)
		require.True(t, ok, l.String())
		assert.NotNil(t, grammar)
		assert.NotNil(t, spec)
		assert.Equal(t, l, spec.Language)
	}
}

func TestRegistry_TSXSelection(t *testing.T) {
	r := NewRegistry()

	plainGrammar, _, ok := r.ForLanguage(model.LanguageTypeScript, false)
	require.True(t, ok)

	tsxGrammar, spec, ok := r.ForLanguage(model.LanguageTypeScript, true)
	require.True(t, ok)
	assert.NotNil(t, tsxGrammar)
	assert.Equal(t, model.LanguageTypeScript, spec.Language)
	assert.NotSame(t, plainGrammar, tsxGrammar)
}

func TestRegistry_UnknownLanguage(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.ForLanguage(model.Language(255), false)
	assert.False(t, ok)
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, ".go", NormalizeExt("go"))
	assert.Equal(t, ".go", NormalizeExt(".GO"))
	assert.Equal(t, ".tsx", NormalizeExt("TSX"))
}

func TestDefault_ReturnsSharedRegistry(t *testing.T) {
	assert.Same(t, Default(), Default())
}
