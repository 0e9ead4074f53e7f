// Package config loads xbf tool settings from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"goXBF/internal/bridge"
)

// EnvVar names the environment variable consulted when no --config flag is
// given.
const EnvVar = "XBF_CONFIG"

type Config struct {
	// DataDir holds table files and the write-ahead log.
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// Store selects the table engine: "file" or "memory".
	Store string `yaml:"store" toml:"store"`

	// MaxDepth bounds vector/record nesting when decoding. Zero or less
	// removes the bound.
	MaxDepth int `yaml:"max_depth" toml:"max_depth"`

	Log    LogConfig    `yaml:"log" toml:"log"`
	Output OutputConfig `yaml:"output" toml:"output"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
}

type OutputConfig struct {
	// Format is the default rendering for scan and show: yaml, json or cbor.
	Format string `yaml:"format" toml:"format"`
}

// Default returns the settings used when no file is given. A file only
// needs to name what it changes.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		Store:    "file",
		MaxDepth: 64,
		Log:      LogConfig{Level: "info"},
		Output:   OutputConfig{Format: "yaml"},
	}
}

// Load reads the file at path, or at $XBF_CONFIG when path is empty. With
// neither set it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile merges the file at path over Default and validates the result.
// Files ending in .toml are read as TOML, anything else as YAML. Relative
// data_dir values are resolved against the file's directory.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	unmarshal := yaml.Unmarshal
	if filepath.Ext(path) == ".toml" {
		unmarshal = toml.Unmarshal
	}
	var raw Config
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.DataDir = os.ExpandEnv(cfg.DataDir)
	if raw.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every setting has a usable value.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	switch c.Store {
	case "file", "memory":
	default:
		return fmt.Errorf("store must be file or memory, got %q", c.Store)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := bridge.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
