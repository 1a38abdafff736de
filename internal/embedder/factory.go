package embedder

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int

	// CacheDir enables the durable cache tier when non-empty.
	CacheDir  string
	CacheSize int
	BatchSize int
}

// New builds a Batcher from config. The zero provider defaults to the
// deterministic hash backend so the engine works without credentials.
func New(cfg Config) (*Batcher, error) {
	var backend Backend
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		backend, err = NewOpenAIBackend(cfg.APIKey, cfg.Model, cfg.Dimension)
	case ProviderOllama:
		backend, err = NewOllamaBackend(cfg.BaseURL, cfg.Model, cfg.Dimension)
	case ProviderHash, "":
		backend = NewHashBackend(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	var cache *Cache
	if cfg.CacheDir != "" {
		cache, err = OpenCache(cfg.CacheDir, cfg.CacheSize)
		if err != nil {
			backend.Close()
			return nil, err
		}
	} else {
		cache = NewCache(cfg.CacheSize)
	}

	return NewBatcher(backend, cache, cfg.BatchSize), nil
}

// ConfigFromEnv fills a Config from SEMINDEX_* environment variables,
// with OPENAI_API_KEY as the key fallback.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider: os.Getenv("SEMINDEX_EMBED_PROVIDER"),
		APIKey:   os.Getenv("SEMINDEX_API_KEY"),
		BaseURL:  os.Getenv("SEMINDEX_EMBED_URL"),
		Model:    os.Getenv("SEMINDEX_EMBED_MODEL"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("SEMINDEX_EMBED_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dimension = n
		}
	}
	if cfg.Provider == "" && cfg.APIKey != "" {
		cfg.Provider = ProviderOpenAI
	}
	return cfg
}
