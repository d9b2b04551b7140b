// Package config loads the settings shared by the scrbench commands from a
// YAML file and SCRBENCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

var validate = validator.New()

// Config holds dataset, checking, storage and server settings.
type Config struct {
	SampleSize           int     `yaml:"sample_size" validate:"gt=0"`
	NoiseLevel           float64 `yaml:"noise_level" validate:"gte=0,lte=1"`
	Patience             int     `yaml:"patience" validate:"gte=0"`
	Seed                 *uint64 `yaml:"seed"`
	Backend              string  `yaml:"backend" validate:"oneof=symbolic autodiff"`
	UseDisplayNames      bool    `yaml:"use_display_names"`
	ReferenceDir         string  `yaml:"reference_dir"`
	ConstraintSampleSize int     `yaml:"constraint_sample_size" validate:"gt=0"`
	LazyCache            bool    `yaml:"lazy_cache"`
	LogLevel             string  `yaml:"log_level" validate:"oneof=debug info warn error"`

	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" validate:"oneof=memory sqlite"`
	Path string `yaml:"path" validate:"required_if=Kind sqlite"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		SampleSize:           1000,
		NoiseLevel:           0,
		Patience:             10,
		Backend:              "symbolic",
		ConstraintSampleSize: 100_000,
		LazyCache:            true,
		LogLevel:             "info",
		Store: StoreConfig{
			Kind: "memory",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load applies the YAML file at path (if path is not empty) and then the
// environment on top of Default, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Level maps LogLevel onto a slog level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func loadFromEnv(c *Config) error {
	ints := map[string]*int{
		"SCRBENCH_SAMPLE_SIZE":            &c.SampleSize,
		"SCRBENCH_PATIENCE":               &c.Patience,
		"SCRBENCH_CONSTRAINT_SAMPLE_SIZE": &c.ConstraintSampleSize,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
			}
			*dst = i
		}
	}

	bools := map[string]*bool{
		"SCRBENCH_USE_DISPLAY_NAMES": &c.UseDisplayNames,
		"SCRBENCH_LAZY_CACHE":        &c.LazyCache,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
			}
			*dst = b
		}
	}

	strs := map[string]*string{
		"SCRBENCH_BACKEND":       &c.Backend,
		"SCRBENCH_REFERENCE_DIR": &c.ReferenceDir,
		"SCRBENCH_LOG_LEVEL":     &c.LogLevel,
		"SCRBENCH_STORE":         &c.Store.Kind,
		"SCRBENCH_STORE_PATH":    &c.Store.Path,
		"SCRBENCH_ADDR":          &c.Server.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SCRBENCH_NOISE_LEVEL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SCRBENCH_NOISE_LEVEL: %w", ErrInvalid, err)
		}
		c.NoiseLevel = f
	}
	if v := os.Getenv("SCRBENCH_SEED"); v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: SCRBENCH_SEED: %w", ErrInvalid, err)
		}
		c.Seed = &s
	}
	return nil
}
