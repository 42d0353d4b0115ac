package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 384, cfg.Storage.EmbeddingDim)
	assert.Equal(t, 1000, cfg.Storage.FullIndexBatchSize)
	assert.Equal(t, 100, cfg.Storage.IncrementalBatchSize)
	assert.True(t, cfg.Storage.EnableChunking)

	assert.Equal(t, 1500, cfg.Chunking.MaxChunkChars)
	assert.Equal(t, 1, cfg.Chunking.OverlapNodes)

	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 200, cfg.Retrieval.MaxLimit)
	assert.Equal(t, 1.0, cfg.Retrieval.BM25Weight)
	assert.True(t, cfg.Retrieval.EnableGraphExpansion)

	assert.Equal(t, 300, cfg.Watcher.DebounceMillis)
	assert.Equal(t, 4096, cfg.Watcher.ChannelCap)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // isolate from any real user config
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Storage.EmbeddingDim)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
storage:
  embedding_dim: 768
retrieval:
  default_limit: 50
  graph_depth: 2
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Storage.EmbeddingDim)
	assert.Equal(t, 50, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 2, cfg.Retrieval.GraphDepth)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, cfg.Storage.FullIndexBatchSize)
}

func TestLoad_YmlSpellingAccepted(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileNameYML),
		[]byte("storage:\n  embedding_dim: 512\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Storage.EmbeddingDim)
}

func TestLoad_UserConfigLayersUnderProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userCfgDir := filepath.Join(xdg, "openace")
	require.NoError(t, os.MkdirAll(userCfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userCfgDir, "config.yaml"),
		[]byte("storage:\n  embedding_dim: 512\nlogging:\n  level: debug\n"), 0o644))

	dir := t.TempDir()
	writeProjectConfig(t, dir, "storage:\n  embedding_dim: 768\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	// Project wins on the shared field; the user-only field survives.
	assert.Equal(t, 768, cfg.Storage.EmbeddingDim)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENACE_EMBEDDING_DIM", "1024")
	dir := t.TempDir()
	writeProjectConfig(t, dir, "storage:\n  embedding_dim: 768\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Storage.EmbeddingDim)
}

func TestLoad_MalformedYAMLErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, "storage: [not a mapping\n")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero embedding dim", func(c *Config) { c.Storage.EmbeddingDim = 0 }},
		{"negative chunk budget", func(c *Config) { c.Chunking.MaxChunkChars = -1 }},
		{"max limit above 200", func(c *Config) { c.Retrieval.MaxLimit = 500 }},
		{"graph depth above 5", func(c *Config) { c.Retrieval.GraphDepth = 10 }},
		{"negative signal weight", func(c *Config) { c.Retrieval.VectorWeight = -0.5 }},
		{"zero debounce", func(c *Config) { c.Watcher.DebounceMillis = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEffectiveGraphDepth(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.GraphDepth = 3

	assert.Equal(t, 3, cfg.EffectiveGraphDepth(0))  // falls back to config
	assert.Equal(t, 2, cfg.EffectiveGraphDepth(2))  // explicit value passes
	assert.Equal(t, 5, cfg.EffectiveGraphDepth(10)) // clamped to 5
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.Storage.EmbeddingDim = 768
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, configFileNameYAML)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 768, loaded.Storage.EmbeddingDim)
}

func TestMergeWith_ExcludesAccumulate(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.Exclude = []string{"testdata/"}

	cfg.mergeWith(&Config{Paths: PathsConfig{Exclude: []string{"*.gen.ts"}}})

	assert.Equal(t, []string{"testdata/", "*.gen.ts"}, cfg.Paths.Exclude)
}
