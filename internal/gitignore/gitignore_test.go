package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcherWith(patterns ...string) *Matcher {
	m := New()
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

func TestMatch_Literal(t *testing.T) {
	m := matcherWith("secret.txt")

	assert.True(t, m.Match("secret.txt", false))
	assert.True(t, m.Match("nested/dir/secret.txt", false))
	assert.False(t, m.Match("secret.txt.bak", false))
}

func TestMatch_StarWildcard(t *testing.T) {
	m := matcherWith("*.log")

	assert.True(t, m.Match("error.log", false))
	assert.True(t, m.Match("logs/error.log", false))
	assert.False(t, m.Match("error.log.gz", false))
	// * must not cross a separator.
	m2 := matcherWith("src/*.js")
	assert.True(t, m2.Match("src/app.js", false))
	assert.False(t, m2.Match("src/lib/app.js", false))
}

func TestMatch_QuestionMark(t *testing.T) {
	m := matcherWith("file?.txt")

	assert.True(t, m.Match("file1.txt", false))
	assert.False(t, m.Match("file12.txt", false))
	assert.False(t, m.Match("file/.txt", false))
}

func TestMatch_CharacterClass(t *testing.T) {
	m := matcherWith("build[0-9].out")

	assert.True(t, m.Match("build7.out", false))
	assert.False(t, m.Match("buildx.out", false))
}

func TestMatch_DoubleStar(t *testing.T) {
	m := matcherWith("**/generated")
	assert.True(t, m.Match("generated", false))
	assert.True(t, m.Match("a/b/generated", false))

	m2 := matcherWith("docs/**")
	assert.True(t, m2.Match("docs/index.md", false))
	assert.True(t, m2.Match("docs/api/v1.md", false))
	assert.False(t, m2.Match("src/docs.go", false))
}

func TestMatch_Anchored(t *testing.T) {
	m := matcherWith("/build")

	assert.True(t, m.Match("build", true))
	assert.False(t, m.Match("src/build", true))
}

func TestMatch_InternalSlashAnchors(t *testing.T) {
	// Per the gitignore syntax, "doc/frotz" means "/doc/frotz".
	m := matcherWith("doc/frotz")

	assert.True(t, m.Match("doc/frotz", false))
	assert.False(t, m.Match("sub/doc/frotz", false))
}

func TestMatch_DirectoryOnly(t *testing.T) {
	m := matcherWith("temp/")

	assert.True(t, m.Match("temp", true))
	assert.False(t, m.Match("temp", false)) // a plain file named temp survives
	assert.True(t, m.Match("temp/cache.bin", false))
	assert.True(t, m.Match("nested/temp/cache.bin", false))
}

func TestMatch_AnchoredDirectoryOnly(t *testing.T) {
	m := matcherWith("/build/")

	assert.True(t, m.Match("build", true))
	assert.True(t, m.Match("build/out.o", false))
	assert.False(t, m.Match("src/build/out.o", false))
}

func TestMatch_NegationOverridesEarlierRule(t *testing.T) {
	m := matcherWith("*.log", "!important.log")

	assert.True(t, m.Match("error.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestMatch_LaterRuleWins(t *testing.T) {
	m := matcherWith("!keep.txt", "*.txt")

	// The ignore rule comes after the negation, so it wins.
	assert.True(t, m.Match("keep.txt", false))
}

func TestMatch_CommentsAndBlanksIgnored(t *testing.T) {
	m := matcherWith("# a comment", "", "   ", "*.tmp")

	assert.True(t, m.Match("x.tmp", false))
	assert.False(t, m.Match("# a comment", false))
}

func TestMatch_EscapedHashAndBang(t *testing.T) {
	m := matcherWith(`\#literal`, `\!bang`)

	assert.True(t, m.Match("#literal", false))
	assert.True(t, m.Match("!bang", false))
}

func TestMatch_NestedBaseScopesPatterns(t *testing.T) {
	m := New()
	m.AddPatternWithBase("*.snap", "pkg/ui")

	assert.True(t, m.Match("pkg/ui/button.snap", false))
	assert.True(t, m.Match("pkg/ui/deep/button.snap", false))
	assert.False(t, m.Match("pkg/core/button.snap", false))
	assert.False(t, m.Match("button.snap", false))
}

func TestAddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("*.log\n# comment\n!keep.log\nbuild/\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("a.log", false))
	assert.False(t, m.Match("keep.log", false))
	assert.True(t, m.Match("build/x", false))
}

func TestAddFromFile_Missing(t *testing.T) {
	m := New()
	assert.Error(t, m.AddFromFile(filepath.Join(t.TempDir(), "absent"), ""))
}

func TestMatch_ConcurrentUse(t *testing.T) {
	m := matcherWith("*.log", "node_modules/")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Match("some/deep/path/file.log", false)
				m.Match("node_modules/react/index.js", false)
			}
		}()
	}
	wg.Wait()
}

func TestMatch_BackslashPathsNormalized(t *testing.T) {
	m := matcherWith("logs/")
	assert.True(t, m.Match(filepath.FromSlash("logs/x.txt"), false))
}
