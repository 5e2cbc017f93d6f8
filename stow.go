package stow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/roach88/stow/internal/config"
	"github.com/roach88/stow/internal/engine"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/mapping"
)

// Config configures Open. Path names the database file; Mode "sandbox"
// works on a temporary copy discarded by Close.
type Config = config.Config

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML configuration file and applies STOW_* environment
// overrides. An empty path reads only the environment.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Store is an open object database.
//
// Thread-safety: every method and operation is safe for concurrent use.
type Store struct {
	conn     *store.Store
	registry *mapping.Registry
	engine   *engine.Engine
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger    *slog.Logger
	factories []mapping.Factory
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. By default stow logs text to stderr at the
// configured level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithModels registers persistable types at open time.
func WithModels(factories ...mapping.Factory) Option {
	return func(o *options) {
		o.factories = append(o.factories, factories...)
	}
}

// Open opens the database described by cfg and starts its worker.
// Zero Mode, LogLevel and BusyTimeoutMS take their defaults. Path has no
// default and must be set.
func Open(cfg Config, opts ...Option) (*Store, error) {
	cfg = withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}

	registry := mapping.NewRegistry()
	if err := registry.Register(o.factories...); err != nil {
		return nil, err
	}

	conn, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return nil, err
	}

	s := &Store{
		conn:     conn,
		registry: registry,
		engine:   engine.New(conn, registry, engine.WithLogger(o.logger)),
		logger:   o.logger,
	}
	go s.engine.Run(context.Background())

	s.logger.Debug("store opened", "path", cfg.Path, "mode", cfg.Mode, "working_file", conn.Path())
	return s, nil
}

func withDefaults(cfg Config) Config {
	def := config.Default()
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.BusyTimeoutMS == 0 {
		cfg.BusyTimeoutMS = def.BusyTimeoutMS
	}
	return cfg
}

// Register adds persistable types. Register a type before the first
// operation that touches it, including as a nested field of another type.
func (s *Store) Register(factories ...mapping.Factory) error {
	if err := s.registry.Register(factories...); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Path returns the file the store operates on; in sandbox mode this is the
// temporary copy.
func (s *Store) Path() string {
	return s.conn.Path()
}

// Close waits for queued operations to finish, then closes the database.
// Operations submitted afterwards fail with STORE_CLOSED. Close must not
// be called from a completion callback, which runs on the worker Close
// waits for. Calling Close again returns the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.engine.Stop()
		<-s.engine.Done()
		s.closeErr = s.conn.Close()
		s.logger.Debug("store closed", "path", s.conn.Path())
	})
	return s.closeErr
}
