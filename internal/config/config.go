// Package config loads host configuration from a YAML file, the
// environment, and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jfenske/recollect/internal/fsrs"
	"github.com/jfenske/recollect/internal/quota"
)

// envPrefix namespaces environment overrides; a double underscore
// separates nesting levels, e.g. RECOLLECT_STORAGE__PATH.
const envPrefix = "RECOLLECT_"

// Storage selects and locates the persistence gateway.
type Storage struct {
	Driver string `koanf:"driver" validate:"oneof=file sqlite"`
	Path   string `koanf:"path" validate:"required"`
}

// Scheduler holds memory-model parameters and daily quotas.
type Scheduler struct {
	RequestRetention float64   `koanf:"request_retention" validate:"gt=0,lt=1"`
	MaximumInterval  float64   `koanf:"maximum_interval" validate:"gte=1"`
	Weights          []float64 `koanf:"weights" validate:"omitempty,len=18"`
	NewCardsPerDay   int       `koanf:"new_cards_per_day" validate:"gte=0"`
	ReviewsPerDay    int       `koanf:"reviews_per_day" validate:"gte=0"`
	SaveDelayMS      int       `koanf:"save_delay_ms" validate:"gte=0"`
}

// Config is the full host configuration.
type Config struct {
	Sources   []string  `koanf:"sources"`
	ReposDir  string    `koanf:"repos_dir" validate:"required"`
	LogLevel  string    `koanf:"log_level" validate:"oneof=debug info warn error"`
	Storage   Storage   `koanf:"storage"`
	Scheduler Scheduler `koanf:"scheduler"`
}

// Default returns the configuration used when nothing is provided.
func Default() *Config {
	return &Config{
		ReposDir: "repos",
		LogLevel: "info",
		Storage: Storage{
			Driver: "file",
			Path:   "recollect.json",
		},
		Scheduler: Scheduler{
			RequestRetention: 0.9,
			MaximumInterval:  36500,
			NewCardsPerDay:   20,
			ReviewsPerDay:    200,
			SaveDelayMS:      1000,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load merges defaults, the optional YAML file at path, RECOLLECT_*
// environment variables, and the given flag set, then validates the
// result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Params builds memory-model parameters from the configuration; the
// default weight vector applies when none is configured.
func (c *Config) Params() *fsrs.Params {
	p := fsrs.DefaultParams()
	p.RequestRetention = c.Scheduler.RequestRetention
	p.MaximumInterval = c.Scheduler.MaximumInterval
	if len(c.Scheduler.Weights) == len(p.W) {
		copy(p.W[:], c.Scheduler.Weights)
	}
	return p
}

// Limits returns the configured global daily quotas.
func (c *Config) Limits() quota.Limits {
	return quota.Limits{
		NewCardsPerDay: c.Scheduler.NewCardsPerDay,
		ReviewsPerDay:  c.Scheduler.ReviewsPerDay,
	}
}

// SaveDelay returns the debounce delay for card mutations.
func (c *Config) SaveDelay() time.Duration {
	return time.Duration(c.Scheduler.SaveDelayMS) * time.Millisecond
}
