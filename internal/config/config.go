// Package config loads and validates rifflux's configuration surface: a
// layered merge of hardcoded defaults, a project-local YAML file, and
// environment variable overrides, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete rifflux configuration surface: embedding backend
// selection, storage location, scan globs, and the auto-reindex/watcher
// knobs that keep an index fresh under concurrent query load.
type Config struct {
	EmbeddingBackend string   `yaml:"embedding_backend" json:"embedding_backend"`
	EmbeddingModel   string   `yaml:"embedding_model" json:"embedding_model"`
	EmbeddingDim     int      `yaml:"embedding_dim" json:"embedding_dim"`
	DBPath           string   `yaml:"db_path" json:"db_path"`
	IncludeGlobs     []string `yaml:"include_globs" json:"include_globs"`
	ExcludeGlobs     []string `yaml:"exclude_globs" json:"exclude_globs"`

	AutoReindexOnSearch          bool     `yaml:"auto_reindex_on_search" json:"auto_reindex_on_search"`
	AutoReindexPaths             []string `yaml:"auto_reindex_paths" json:"auto_reindex_paths"`
	AutoReindexMinIntervalSecond float64  `yaml:"auto_reindex_min_interval_seconds" json:"auto_reindex_min_interval_seconds"`

	FileWatcher            bool     `yaml:"file_watcher" json:"file_watcher"`
	FileWatcherPaths       []string `yaml:"file_watcher_paths" json:"file_watcher_paths"`
	FileWatcherDebounceMs  int      `yaml:"file_watcher_debounce_ms" json:"file_watcher_debounce_ms"`

	OrtLibPath string `yaml:"ort_lib_path" json:"ort_lib_path"`
	ModelDir   string `yaml:"model_dir" json:"model_dir"`
}

// defaultExcludeGlobs are excluded unless a project config overrides them.
var defaultExcludeGlobs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.tmp/**",
	"**/dist/**",
	"**/build/**",
}

// New returns a Config populated with spec defaults.
func New() *Config {
	return &Config{
		EmbeddingBackend:              "auto",
		EmbeddingModel:                "BAAI/bge-small-en-v1.5",
		EmbeddingDim:                  384,
		DBPath:                        filepath.Join(".tmp", "rifflux", "rifflux.db"),
		IncludeGlobs:                  []string{"*.md"},
		ExcludeGlobs:                  append([]string(nil), defaultExcludeGlobs...),
		AutoReindexOnSearch:           false,
		AutoReindexPaths:              nil,
		AutoReindexMinIntervalSecond: 2.0,
		FileWatcher:                   false,
		FileWatcherPaths:              nil,
		FileWatcherDebounceMs:         500,
	}
}

// Load applies, in order of increasing precedence: hardcoded defaults, a
// project-local ".rifflux.yaml"/".rifflux.yml" in dir, then RIFFLUX_*
// environment variables. The result is validated before it is returned.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".rifflux.yaml", ".rifflux.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func (c *Config) mergeWith(other *Config) {
	if other.EmbeddingBackend != "" {
		c.EmbeddingBackend = other.EmbeddingBackend
	}
	if other.EmbeddingModel != "" {
		c.EmbeddingModel = other.EmbeddingModel
	}
	if other.EmbeddingDim != 0 {
		c.EmbeddingDim = other.EmbeddingDim
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if len(other.IncludeGlobs) > 0 {
		c.IncludeGlobs = other.IncludeGlobs
	}
	if len(other.ExcludeGlobs) > 0 {
		c.ExcludeGlobs = other.ExcludeGlobs
	}
	if other.AutoReindexOnSearch {
		c.AutoReindexOnSearch = true
	}
	if len(other.AutoReindexPaths) > 0 {
		c.AutoReindexPaths = other.AutoReindexPaths
	}
	if other.AutoReindexMinIntervalSecond != 0 {
		c.AutoReindexMinIntervalSecond = other.AutoReindexMinIntervalSecond
	}
	if other.FileWatcher {
		c.FileWatcher = true
	}
	if len(other.FileWatcherPaths) > 0 {
		c.FileWatcherPaths = other.FileWatcherPaths
	}
	if other.FileWatcherDebounceMs != 0 {
		c.FileWatcherDebounceMs = other.FileWatcherDebounceMs
	}
	if other.OrtLibPath != "" {
		c.OrtLibPath = other.OrtLibPath
	}
	if other.ModelDir != "" {
		c.ModelDir = other.ModelDir
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RIFFLUX_EMBEDDING_BACKEND"); v != "" {
		c.EmbeddingBackend = v
	}
	if v := os.Getenv("RIFFLUX_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("RIFFLUX_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.EmbeddingDim = n
		}
	}
	if v := os.Getenv("RIFFLUX_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RIFFLUX_FILE_WATCHER"); v != "" {
		c.FileWatcher = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RIFFLUX_AUTO_REINDEX_ON_SEARCH"); v != "" {
		c.AutoReindexOnSearch = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RIFFLUX_ORT_LIB_PATH"); v != "" {
		c.OrtLibPath = v
	}
	if v := os.Getenv("RIFFLUX_MODEL_DIR"); v != "" {
		c.ModelDir = v
	}
}

// Validate rejects a configuration with an unknown backend, a non-positive
// embedding dimension, or any other value outside its accepted range.
func (c *Config) Validate() error {
	switch c.EmbeddingBackend {
	case "auto", "onnx-like", "hash":
	default:
		return fmt.Errorf("embedding_backend must be auto, onnx-like, or hash, got %q", c.EmbeddingBackend)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.AutoReindexMinIntervalSecond < 0 {
		return fmt.Errorf("auto_reindex_min_interval_seconds must be non-negative, got %f", c.AutoReindexMinIntervalSecond)
	}
	if c.FileWatcherDebounceMs < 0 {
		return fmt.Errorf("file_watcher_debounce_ms must be non-negative, got %d", c.FileWatcherDebounceMs)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, for `rifflux init`-style
// scaffolding.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .rifflux.yaml/.yml file, falling back to startDir itself if neither is
// found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		if fileExists(filepath.Join(dir, ".rifflux.yaml")) || fileExists(filepath.Join(dir, ".rifflux.yml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
