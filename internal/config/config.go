// Package config loads seanode.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/seanode/internal/canon"
	"github.com/roach88/seanode/internal/engine"
)

// FileName is the configuration file looked up when no path is given.
const FileName = "seanode.toml"

// Config is the full configuration. Absent keys keep their defaults.
type Config struct {
	Canon  CanonConfig  `toml:"canon"`
	Engine EngineConfig `toml:"engine"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

// CanonConfig selects the optional rule groups.
type CanonConfig struct {
	StrengthReduction  bool `toml:"strength_reduction"`
	FloorCorrection    bool `toml:"floor_correction"`
	AdjacentDuplicates bool `toml:"adjacent_duplicates"`
}

// EngineConfig tunes the fixpoint driver.
type EngineConfig struct {
	// MaxRewrites is the per-unit rewrite quota.
	MaxRewrites int `toml:"max_rewrites"`
	// Workers bounds parallel units; 0 means no limit.
	Workers int `toml:"workers"`
}

// StoreConfig locates the rewrite journal. An empty path disables it.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	opts := canon.DefaultOptions()
	return &Config{
		Canon: CanonConfig{
			StrengthReduction:  opts.StrengthReduction,
			FloorCorrection:    opts.FloorCorrection,
			AdjacentDuplicates: opts.AdjacentDuplicates,
		},
		Engine: EngineConfig{MaxRewrites: engine.DefaultMaxRewrites, Workers: 4},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or FileName in the working directory when path
// is empty. A missing default file yields Default(); a missing explicit
// path is an error.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(FileName)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes TOML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("failed to parse config file: %s\n%s", strict.Error(), strict.String())
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.MaxRewrites <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_rewrites must be positive, got %d", c.Engine.MaxRewrites))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must not be negative, got %d", c.Engine.Workers))
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Save writes c to path as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CanonOptions returns the rule groups as canon options.
func (c *Config) CanonOptions() canon.Options {
	return canon.Options{
		StrengthReduction:  c.Canon.StrengthReduction,
		FloorCorrection:    c.Canon.FloorCorrection,
		AdjacentDuplicates: c.Canon.AdjacentDuplicates,
	}
}

// EngineOptions returns the driver options c describes.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithMaxRewrites(c.Engine.MaxRewrites),
		engine.WithTool(canon.NewTool(nil, c.CanonOptions())),
	}
}

// SlogLevel returns the configured log level. Invalid levels map to info.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
