// Package config loads engine configuration from a YAML file with
// environment fallbacks for embedding credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/engine"
	"github.com/tessellate-dev/semindex/internal/hnsw"
	"github.com/tessellate-dev/semindex/internal/indexer"
)

// Config is the on-disk configuration shape.
type Config struct {
	IndexDir             string `yaml:"index_dir"`
	SearchTimeoutSeconds int    `yaml:"search_timeout_seconds"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		Dimension int    `yaml:"dimension"`
		CacheDir  string `yaml:"cache_dir"`
		CacheSize int    `yaml:"cache_size"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Chunker struct {
		WindowLines  int   `yaml:"window_lines"`
		OverlapLines int   `yaml:"overlap_lines"`
		MaxFileBytes int64 `yaml:"max_file_bytes"`
	} `yaml:"chunker"`

	Graph struct {
		M              int   `yaml:"m"`
		EfConstruction int   `yaml:"ef_construction"`
		EfSearch       int   `yaml:"ef_search"`
		Seed           int64 `yaml:"seed"`
	} `yaml:"graph"`

	Scan struct {
		IncludeTests *bool    `yaml:"include_tests"`
		IgnoreDirs   []string `yaml:"ignore_dirs"`
		Workers      int      `yaml:"workers"`
	} `yaml:"scan"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg.IndexDir = filepath.Join(home, ".semindex", "index")
	cfg.Embedding.CacheDir = filepath.Join(home, ".semindex", "cache")
	return cfg
}

// Load reads a YAML config file. An empty path returns defaults; a
// missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Engine converts the file config into an engine.Config, filling
// embedding credentials from the environment when the file leaves them
// out.
func (c *Config) Engine() engine.Config {
	emb := embedder.ConfigFromEnv()
	if c.Embedding.Provider != "" {
		emb.Provider = c.Embedding.Provider
	}
	if c.Embedding.Model != "" {
		emb.Model = c.Embedding.Model
	}
	if c.Embedding.BaseURL != "" {
		emb.BaseURL = c.Embedding.BaseURL
	}
	if c.Embedding.Dimension > 0 {
		emb.Dimension = c.Embedding.Dimension
	}
	emb.CacheDir = c.Embedding.CacheDir
	emb.CacheSize = c.Embedding.CacheSize
	emb.BatchSize = c.Embedding.BatchSize

	indexing := indexer.DefaultOptions()
	if c.Chunker.WindowLines > 0 {
		indexing.Chunker.WindowLines = c.Chunker.WindowLines
	}
	if c.Chunker.OverlapLines > 0 {
		indexing.Chunker.OverlapLines = c.Chunker.OverlapLines
	}
	if c.Chunker.MaxFileBytes > 0 {
		indexing.Chunker.MaxFileBytes = int(c.Chunker.MaxFileBytes)
		indexing.Scan.MaxFileBytes = c.Chunker.MaxFileBytes
	}
	indexing.Graph = hnsw.Config{
		M:              c.Graph.M,
		EfConstruction: c.Graph.EfConstruction,
		EfSearch:       c.Graph.EfSearch,
		Seed:           c.Graph.Seed,
	}
	if c.Scan.IncludeTests != nil {
		indexing.Scan.IncludeTests = *c.Scan.IncludeTests
	}
	if len(c.Scan.IgnoreDirs) > 0 {
		indexing.Scan.IgnoreDirs = c.Scan.IgnoreDirs
	}
	if c.Scan.Workers > 0 {
		indexing.Scan.Workers = c.Scan.Workers
	}

	var timeout time.Duration
	if c.SearchTimeoutSeconds > 0 {
		timeout = time.Duration(c.SearchTimeoutSeconds) * time.Second
	}

	return engine.Config{
		IndexDir:      c.IndexDir,
		Embedding:     emb,
		Indexing:      indexing,
		SearchTimeout: timeout,
	}
}
