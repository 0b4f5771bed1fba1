// Package config handles reading and writing the TOML configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for gitre.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Model    ModelConfig    `toml:"model"`
	Analysis AnalysisConfig `toml:"analysis"`
	Rewrite  RewriteConfig  `toml:"rewrite"`
	Database DatabaseConfig `toml:"database"`
}

// ModelConfig configures the language-model API.
type ModelConfig struct {
	Name      string `toml:"name"`
	BaseURL   string `toml:"base_url,omitempty"` // empty means the public endpoint
	MaxTokens int    `toml:"max_tokens"`
	// Per-million-token prices for cost accounting. Zero disables costs.
	InputPricePerMTok  float64 `toml:"input_price_per_mtok"`
	OutputPricePerMTok float64 `toml:"output_price_per_mtok"`
	// The API key is read from the GITRE_API_KEY (or ANTHROPIC_API_KEY)
	// environment variable, never from this file.
}

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	BatchSize    int `toml:"batch_size"`     // commits per model request
	MaxDiffBytes int `toml:"max_diff_bytes"` // per-commit patch cap
	Workers      int `toml:"workers"`        // concurrent diff extractions
}

// RewriteConfig tunes the history rewrite.
type RewriteConfig struct {
	BackupBranchPrefix string `toml:"backup_branch_prefix"`
}

// DatabaseConfig configures the run-history database.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config with the default values for baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Model: ModelConfig{
			Name:      "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Analysis: AnalysisConfig{
			BatchSize:    5,
			MaxDiffBytes: 50_000,
			Workers:      4,
		},
		Rewrite: RewriteConfig{
			BackupBranchPrefix: "gitre-backup-",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path. Refuses to
// overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
