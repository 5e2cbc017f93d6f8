// Package config loads stow configuration from a YAML file and the
// environment, and validates it against an embedded CUE schema.
//
// Precedence, lowest first: Default, the YAML file, STOW_* variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stow/internal/store"
)

//go:embed schema.cue
var schemaSource string

// Config holds everything needed to open a store.
type Config struct {
	// Path is the persistent database file.
	Path string `json:"path" yaml:"path" env:"STOW_PATH"`

	// Mode is "normal" or "sandbox". A sandbox works on a temporary copy
	// of Path that is discarded on close.
	Mode string `json:"mode" yaml:"mode" env:"STOW_MODE"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" env:"STOW_LOG_LEVEL"`

	// BusyTimeoutMS bounds the wait for a locked database; 0 uses the
	// store default.
	BusyTimeoutMS int `json:"busy_timeout_ms" yaml:"busy_timeout_ms" env:"STOW_BUSY_TIMEOUT_MS"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Path:          "stow.db",
		Mode:          string(store.ModeNormal),
		LogLevel:      "info",
		BusyTimeoutMS: int(store.DefaultBusyTimeout / time.Millisecond),
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return errors.New("config schema has no #Config")
	}

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names map to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreOptions converts c to the options store.Open takes.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Path:        c.Path,
		Mode:        store.Mode(c.Mode),
		BusyTimeout: time.Duration(c.BusyTimeoutMS) * time.Millisecond,
	}
}
