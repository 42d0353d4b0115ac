// Package config loads and validates the engine's configuration: batch
// sizes, chunk budget, per-signal retrieval weights, and the vector index's
// embedding dimension.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration: storage batch sizes, the
// AST chunker budget, and the retrieval engine's RRF weights and pool
// sizes.
type Config struct {
	Version int `yaml:"version" json:"version"`

	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Watcher   WatcherConfig   `yaml:"watcher" json:"watcher"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig configures which paths the scanner includes or excludes, on
// top of the fixed vendor deny list and generated-file patterns.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StorageConfig configures the storage trio and the manager's batch sizes.
type StorageConfig struct {
	// EmbeddingDim is D, the fixed vector dimension recorded in meta.json.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`
	// FullIndexBatchSize is the bulk-insert transaction size for the
	// full-index pipeline's store phase (default 1000).
	FullIndexBatchSize int `yaml:"full_index_batch_size" json:"full_index_batch_size"`
	// IncrementalBatchSize is the transaction size for the incremental
	// engine's apply phase (default 100).
	IncrementalBatchSize int `yaml:"incremental_batch_size" json:"incremental_batch_size"`
	// ParseWorkers bounds the full-index pipeline's data-parallel parse
	// phase fan-out (default: NumCPU).
	ParseWorkers int `yaml:"parse_workers" json:"parse_workers"`
	// EnableChunking turns on AST chunk extraction and chunk-document
	// indexing during both the full-index pipeline and the incremental
	// engine.
	EnableChunking bool `yaml:"enable_chunking" json:"enable_chunking"`
}

// ChunkingConfig configures the AST chunker's non-whitespace character
// budget.
type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars" json:"max_chunk_chars"`
	OverlapNodes  int `yaml:"overlap_nodes" json:"overlap_nodes"`
}

// RetrievalConfig configures the multi-signal retrieval engine.
type RetrievalConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	BM25PoolSize       int `yaml:"bm25_pool_size" json:"bm25_pool_size"`
	VectorPoolSize     int `yaml:"vector_pool_size" json:"vector_pool_size"`
	ExactMatchPoolSize int `yaml:"exact_match_pool_size" json:"exact_match_pool_size"`
	ChunkPoolSize      int `yaml:"chunk_pool_size" json:"chunk_pool_size"`

	BM25Weight   float64 `yaml:"bm25_weight" json:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`
	ExactWeight  float64 `yaml:"exact_weight" json:"exact_weight"`
	ChunkWeight  float64 `yaml:"chunk_weight" json:"chunk_weight"`
	GraphWeight  float64 `yaml:"graph_weight" json:"graph_weight"`

	EnableGraphExpansion bool `yaml:"enable_graph_expansion" json:"enable_graph_expansion"`
	GraphDepth           int  `yaml:"graph_depth" json:"graph_depth"`
	GraphMaxFanout       int  `yaml:"graph_max_fanout" json:"graph_max_fanout"`
	EnableChunkSearch    bool `yaml:"enable_chunk_search" json:"enable_chunk_search"`

	// HydrationCacheSize bounds the LRU cache of hydrated symbol rows shared
	// across repeated queries (see internal/retrieval).
	HydrationCacheSize int `yaml:"hydration_cache_size" json:"hydration_cache_size"`
}

// WatcherConfig configures the filesystem watcher's debounce window and
// bounded event channel.
type WatcherConfig struct {
	DebounceMillis int `yaml:"debounce_millis" json:"debounce_millis"`
	ChannelCap     int `yaml:"channel_cap" json:"channel_cap"`
}

// LoggingConfig configures the engine's structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

const (
	configFileNameYAML  = ".openace.yaml"
	configFileNameYML   = ".openace.yml"
	defaultEmbeddingDim = 384
)

// NewConfig returns a Config populated with the engine's defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: []string{},
		},
		Storage: StorageConfig{
			EmbeddingDim:         defaultEmbeddingDim,
			FullIndexBatchSize:   1000,
			IncrementalBatchSize: 100,
			ParseWorkers:         runtime.NumCPU(),
			EnableChunking:       true,
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: 1500,
			OverlapNodes:  1,
		},
		Retrieval: RetrievalConfig{
			DefaultLimit:         20,
			MaxLimit:             200,
			RRFConstant:          60,
			BM25PoolSize:         100,
			VectorPoolSize:       100,
			ExactMatchPoolSize:   50,
			ChunkPoolSize:        100,
			BM25Weight:           1.0,
			VectorWeight:         1.0,
			ExactWeight:          1.0,
			ChunkWeight:          1.0,
			GraphWeight:          1.0,
			EnableGraphExpansion: true,
			GraphDepth:           3,
			GraphMaxFanout:       50,
			EnableChunkSearch:    true,
			HydrationCacheSize:   1000,
		},
		Watcher: WatcherConfig{
			DebounceMillis: 300,
			ChannelCap:     4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration for the project rooted at dir, layering in order
// of increasing precedence: hardcoded defaults, user config
// (~/.config/openace/config.yaml), project config (.openace.yaml in dir),
// then OPENACE_* environment variables. The result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("config: load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{configFileNameYAML, configFileNameYML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// GetUserConfigPath follows the XDG Base Directory spec:
// $XDG_CONFIG_HOME/openace/config.yaml, or ~/.config/openace/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "openace", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "openace", "config.yaml")
	}
	return filepath.Join(home, ".config", "openace", "config.yaml")
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeWith merges non-zero values from other into c, project/user config
// taking precedence over defaults field by field.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Storage.EmbeddingDim != 0 {
		c.Storage.EmbeddingDim = other.Storage.EmbeddingDim
	}
	if other.Storage.FullIndexBatchSize != 0 {
		c.Storage.FullIndexBatchSize = other.Storage.FullIndexBatchSize
	}
	if other.Storage.IncrementalBatchSize != 0 {
		c.Storage.IncrementalBatchSize = other.Storage.IncrementalBatchSize
	}
	if other.Storage.ParseWorkers != 0 {
		c.Storage.ParseWorkers = other.Storage.ParseWorkers
	}

	if other.Chunking.MaxChunkChars != 0 {
		c.Chunking.MaxChunkChars = other.Chunking.MaxChunkChars
	}
	if other.Chunking.OverlapNodes != 0 {
		c.Chunking.OverlapNodes = other.Chunking.OverlapNodes
	}

	if other.Retrieval.DefaultLimit != 0 {
		c.Retrieval.DefaultLimit = other.Retrieval.DefaultLimit
	}
	if other.Retrieval.MaxLimit != 0 {
		c.Retrieval.MaxLimit = other.Retrieval.MaxLimit
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.BM25PoolSize != 0 {
		c.Retrieval.BM25PoolSize = other.Retrieval.BM25PoolSize
	}
	if other.Retrieval.VectorPoolSize != 0 {
		c.Retrieval.VectorPoolSize = other.Retrieval.VectorPoolSize
	}
	if other.Retrieval.ExactMatchPoolSize != 0 {
		c.Retrieval.ExactMatchPoolSize = other.Retrieval.ExactMatchPoolSize
	}
	if other.Retrieval.ChunkPoolSize != 0 {
		c.Retrieval.ChunkPoolSize = other.Retrieval.ChunkPoolSize
	}
	if other.Retrieval.BM25Weight != 0 {
		c.Retrieval.BM25Weight = other.Retrieval.BM25Weight
	}
	if other.Retrieval.VectorWeight != 0 {
		c.Retrieval.VectorWeight = other.Retrieval.VectorWeight
	}
	if other.Retrieval.ExactWeight != 0 {
		c.Retrieval.ExactWeight = other.Retrieval.ExactWeight
	}
	if other.Retrieval.ChunkWeight != 0 {
		c.Retrieval.ChunkWeight = other.Retrieval.ChunkWeight
	}
	if other.Retrieval.GraphWeight != 0 {
		c.Retrieval.GraphWeight = other.Retrieval.GraphWeight
	}
	if other.Retrieval.GraphDepth != 0 {
		c.Retrieval.GraphDepth = other.Retrieval.GraphDepth
	}
	if other.Retrieval.GraphMaxFanout != 0 {
		c.Retrieval.GraphMaxFanout = other.Retrieval.GraphMaxFanout
	}
	if other.Retrieval.HydrationCacheSize != 0 {
		c.Retrieval.HydrationCacheSize = other.Retrieval.HydrationCacheSize
	}

	if other.Watcher.DebounceMillis != 0 {
		c.Watcher.DebounceMillis = other.Watcher.DebounceMillis
	}
	if other.Watcher.ChannelCap != 0 {
		c.Watcher.ChannelCap = other.Watcher.ChannelCap
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies OPENACE_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENACE_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.EmbeddingDim = n
		}
	}
	if v := os.Getenv("OPENACE_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.RRFConstant = n
		}
	}
	if v := os.Getenv("OPENACE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OPENACE_ENABLE_GRAPH_EXPANSION"); v != "" {
		c.Retrieval.EnableGraphExpansion = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks invariants on the final merged configuration.
func (c *Config) Validate() error {
	if c.Storage.EmbeddingDim <= 0 {
		return fmt.Errorf("storage.embedding_dim must be positive, got %d", c.Storage.EmbeddingDim)
	}
	if c.Chunking.MaxChunkChars <= 0 {
		return fmt.Errorf("chunking.max_chunk_chars must be positive, got %d", c.Chunking.MaxChunkChars)
	}
	if c.Retrieval.MaxLimit <= 0 || c.Retrieval.MaxLimit > 200 {
		return fmt.Errorf("retrieval.max_limit must be in (0, 200], got %d", c.Retrieval.MaxLimit)
	}
	if c.Retrieval.GraphDepth < 0 || c.Retrieval.GraphDepth > 5 {
		return fmt.Errorf("retrieval.graph_depth must be in [0, 5], got %d", c.Retrieval.GraphDepth)
	}
	for _, w := range []float64{
		c.Retrieval.BM25Weight, c.Retrieval.VectorWeight, c.Retrieval.ExactWeight,
		c.Retrieval.ChunkWeight, c.Retrieval.GraphWeight,
	} {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("retrieval signal weights must be non-negative")
		}
	}
	if c.Watcher.DebounceMillis <= 0 {
		return fmt.Errorf("watcher.debounce_millis must be positive, got %d", c.Watcher.DebounceMillis)
	}
	return nil
}

// WriteYAML writes c to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// EffectiveGraphDepth resolves a per-query requested depth against the
// configured default, clamping to the hard maximum of 5.
func (c *Config) EffectiveGraphDepth(requested int) int {
	if requested <= 0 {
		return c.Retrieval.GraphDepth
	}
	if requested > 5 {
		return 5
	}
	return requested
}
