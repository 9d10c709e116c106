// Package config loads the emdinfo configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the emdinfo configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MemoryLimit caps the size of a single dataset load. Accepts plain
	// byte counts or humanized sizes such as "2 TiB" or "512MB".
	MemoryLimit ByteSize `yaml:"memory_limit"`

	// SampleSize is the number of samples drawn for frame display ranges.
	SampleSize int `yaml:"sample_size"`

	// Color enables coloured tree output.
	Color bool `yaml:"color"`

	// Store selects the .emd container backend: hdf5 or badger.
	Store string `yaml:"store"`

	Badger BadgerConfig `yaml:"badger"`
}

// Container backends.
const (
	StoreHDF5   = "hdf5"
	StoreBadger = "badger"
)

// BadgerConfig configures badger-backed .emd containers.
type BadgerConfig struct {
	SyncWrites       bool `yaml:"sync_writes"`
	CompressionLevel int  `yaml:"compression_level"`
}

// ByteSize is a byte count that unmarshals from humanized strings.
type ByteSize uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := humanize.ParseBytes(node.Value)
	if err != nil {
		return fmt.Errorf("config: memory size %q: %w", node.Value, err)
	}
	*b = ByteSize(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return humanize.IBytes(uint64(b)), nil
}

// String formats b with binary units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:    "warn",
		MemoryLimit: ByteSize(2048 << 30),
		SampleSize:  2000,
		Color:       true,
		Store:       StoreHDF5,
		Badger: BadgerConfig{
			SyncWrites:       true,
			CompressionLevel: 6,
		},
	}
}

// Load reads path over Defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, Validate(cfg)
}

// Validate checks value ranges.
func Validate(cfg Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.MemoryLimit == 0 {
		return errors.New("config: memory_limit must be > 0")
	}
	if cfg.SampleSize < 1 {
		return errors.New("config: sample_size must be >= 1")
	}
	if cfg.Store != StoreHDF5 && cfg.Store != StoreBadger {
		return fmt.Errorf("config: unknown store %q", cfg.Store)
	}
	if cfg.Badger.CompressionLevel < 0 || cfg.Badger.CompressionLevel > 9 {
		return fmt.Errorf("config: badger.compression_level %d out of range [0,9]", cfg.Badger.CompressionLevel)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log_level %q", s)
}
