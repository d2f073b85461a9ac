package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"webrag/internal/domain"
)

// Config holds all configuration for the retrieval service.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Cache      CacheConfig      `yaml:"cache"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Assemble   AssembleConfig   `yaml:"assemble"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig controls how documents are split into passages.
type ChunkingConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
	OverlapChars  int `yaml:"overlap_chars"`
	MinChunkChars int `yaml:"min_chunk_chars"`
}

// CacheConfig controls the embedding cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// IndexConfig controls the vector index.
type IndexConfig struct {
	Metric      string `yaml:"metric"`      // "cosine" or "neg_l2"
	Approximate bool   `yaml:"approximate"` // use the IVF index instead of exact scan
	IVFCells    int    `yaml:"ivf_cells"`
	IVFProbes   int    `yaml:"ivf_probes"`
}

// RetrieveConfig controls the query path.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	MinScore        float64 `yaml:"min_score"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"` // query embedding deadline
}

// AssembleConfig controls context assembly.
type AssembleConfig struct {
	MaxContextChars int `yaml:"max_context_chars"`
}

// EmbeddingConfig holds embedding collaborator configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig holds generation collaborator configuration.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RetryConfig is the shared retry policy for collaborator calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxChunkChars: 1200,
			OverlapChars:  200,
			MinChunkChars: 120,
		},
		Cache: CacheConfig{
			Capacity: 4096,
		},
		Index: IndexConfig{
			Metric:      "cosine",
			Approximate: false,
			IVFCells:    64,
			IVFProbes:   8,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			MinScore:        0.25,
			OverfetchFactor: 4,
			TimeoutSeconds:  30,
		},
		Assemble: AssembleConfig{
			MaxContextChars: 6000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BaseURL:   "https://api.openai.com/v1",
			Dimension: 1536,
			BatchSize: 100,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			BaseURL:     "https://api.openai.com/v1",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Retry: RetryConfig{
			MaxAttempts:      2,
			InitialBackoffMS: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks every recognized option eagerly so misconfiguration
// fails at construction instead of deep inside an operation.
func (c *Config) Validate() error {
	if c.Chunking.MaxChunkChars <= 0 {
		return &domain.ConfigError{Field: "chunking.max_chunk_chars", Reason: "must be positive"}
	}
	if c.Chunking.OverlapChars < 0 {
		return &domain.ConfigError{Field: "chunking.overlap_chars", Reason: "must not be negative"}
	}
	if c.Chunking.OverlapChars >= c.Chunking.MaxChunkChars {
		return &domain.ConfigError{Field: "chunking.overlap_chars", Reason: "must be smaller than max_chunk_chars"}
	}
	if c.Chunking.MinChunkChars < 0 || c.Chunking.MinChunkChars > c.Chunking.MaxChunkChars {
		return &domain.ConfigError{Field: "chunking.min_chunk_chars", Reason: "must be between 0 and max_chunk_chars"}
	}
	if c.Cache.Capacity <= 0 {
		return &domain.ConfigError{Field: "cache.capacity", Reason: "must be positive"}
	}
	switch c.Index.Metric {
	case "cosine", "neg_l2":
	default:
		return &domain.ConfigError{Field: "index.metric", Reason: "must be \"cosine\" or \"neg_l2\""}
	}
	if c.Index.Approximate {
		if c.Index.IVFCells <= 0 {
			return &domain.ConfigError{Field: "index.ivf_cells", Reason: "must be positive"}
		}
		if c.Index.IVFProbes <= 0 || c.Index.IVFProbes > c.Index.IVFCells {
			return &domain.ConfigError{Field: "index.ivf_probes", Reason: "must be between 1 and ivf_cells"}
		}
	}
	if c.Retrieve.TopK <= 0 {
		return &domain.ConfigError{Field: "retrieve.top_k", Reason: "must be positive"}
	}
	if c.Retrieve.OverfetchFactor < 1 {
		return &domain.ConfigError{Field: "retrieve.overfetch_factor", Reason: "must be at least 1"}
	}
	if c.Retrieve.TimeoutSeconds <= 0 {
		return &domain.ConfigError{Field: "retrieve.timeout_seconds", Reason: "must be positive"}
	}
	if c.Assemble.MaxContextChars < 0 {
		return &domain.ConfigError{Field: "assemble.max_context_chars", Reason: "must not be negative"}
	}
	if c.Embedding.Dimension <= 0 {
		return &domain.ConfigError{Field: "embedding.dimension", Reason: "must be positive"}
	}
	if c.Embedding.BatchSize <= 0 {
		return &domain.ConfigError{Field: "embedding.batch_size", Reason: "must be positive"}
	}
	if c.Retry.MaxAttempts <= 0 {
		return &domain.ConfigError{Field: "retry.max_attempts", Reason: "must be positive"}
	}
	if c.Retry.InitialBackoffMS < 0 {
		return &domain.ConfigError{Field: "retry.initial_backoff_ms", Reason: "must not be negative"}
	}
	return nil
}

// Load loads configuration from a YAML file and validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for webrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "webrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".webrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".webrag", "index.db")
}

// EnsureDataDir ensures the .webrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".webrag"), 0755)
}
