package visitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
)

func parsePython(t *testing.T, source string) *lang.Tree {
	t.Helper()
	p := lang.NewParser()
	t.Cleanup(p.Close)
	tree, err := p.Parse(context.Background(), []byte(source), model.LanguagePython, false)
	require.NoError(t, err)
	return tree
}

func TestVisit_NestedScopesProduceQualifiedNames(t *testing.T) {
	tree := parsePython(t, `class Account:
    def close(self):
        return True
`)

	res := Visit(tree, "repo", "bank/account.py")

	byQName := map[string]model.CodeSymbol{}
	for _, s := range res.Symbols {
		byQName[s.QualifiedName] = s
	}

	require.Contains(t, byQName, "Account")
	require.Contains(t, byQName, "Account.close")
	assert.Equal(t, model.SymbolKindClass, byQName["Account"].Kind)
	assert.Equal(t, "close", byQName["Account.close"].Name)
	assert.Equal(t, "bank/account.py", byQName["Account.close"].FilePath)
}

func TestVisit_SymbolIDsMatchIdentityScheme(t *testing.T) {
	tree := parsePython(t, "def standalone():\n    return 1\n")

	res := Visit(tree, "repo", "util.py")
	require.Len(t, res.Symbols, 1)

	s := res.Symbols[0]
	assert.Equal(t,
		model.GenerateSymbolId("repo", "util.py", s.QualifiedName, s.ByteRange.Start, s.ByteRange.End),
		s.ID)
}

func TestVisit_CallsEmitPhantomTargets(t *testing.T) {
	tree := parsePython(t, `def caller():
    return helper_function()
`)

	res := Visit(tree, "repo", "a.py")
	require.Len(t, res.Symbols, 1)
	require.NotEmpty(t, res.Relations)

	rel := res.Relations[0]
	assert.Equal(t, model.RelationCalls, rel.Kind)
	assert.Equal(t, res.Symbols[0].ID, rel.SourceID)
	// The target is the phantom the resolver later binds.
	assert.Equal(t, model.GenerateSymbolId("", "", "helper_function", 0, 0), rel.TargetID)
	assert.Equal(t, 0.80, rel.Confidence)
}

func TestVisit_ContainsRelationBetweenScopes(t *testing.T) {
	tree := parsePython(t, `class Outer:
    def inner(self):
        pass
`)

	res := Visit(tree, "repo", "a.py")

	var containsFound bool
	for _, rel := range res.Relations {
		if rel.Kind == model.RelationContains {
			containsFound = true
			assert.Equal(t, 0.95, rel.Confidence)
		}
	}
	assert.True(t, containsFound)
}

func TestVisit_BodyHashTracksBodyContent(t *testing.T) {
	a := Visit(parsePython(t, "def f():\n    return 1\n"), "repo", "a.py")
	b := Visit(parsePython(t, "def f():\n    return 2\n"), "repo", "a.py")

	require.Len(t, a.Symbols, 1)
	require.Len(t, b.Symbols, 1)
	assert.Equal(t, a.Symbols[0].ID, b.Symbols[0].ID) // same span and name
	assert.NotEqual(t, a.Symbols[0].BodyHash, b.Symbols[0].BodyHash)
}

func TestVisit_NilTreeIsEmpty(t *testing.T) {
	res := Visit(nil, "repo", "a.py")
	assert.Empty(t, res.Symbols)
	assert.Empty(t, res.Relations)
}
