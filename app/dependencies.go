package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/chat-relay/config"
	"github.com/upb/chat-relay/repositories"
	"github.com/upb/chat-relay/repositories/memory"
	"github.com/upb/chat-relay/repositories/postgres"
	redisrepo "github.com/upb/chat-relay/repositories/redis"
	"github.com/upb/chat-relay/services/cache"
	"github.com/upb/chat-relay/services/dispatch"
	"github.com/upb/chat-relay/services/providers"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB // nil unless the postgres cache backend is selected

	// Cache store
	CacheStore repositories.CacheRepository

	// Providers
	Registry       *providers.Registry
	HTTPClient     *http.Client
	ProviderClient *providers.Client

	// Services
	Cache  *cache.Service
	Engine *dispatch.Engine

	closers []func() error
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize the cache store
	if err := deps.initCacheStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Strings("priority", deps.Engine.Priority()))
	return deps, nil
}

// NewDependenciesWithStore wires the services over an existing cache store.
// The caller keeps ownership of store.
func NewDependenciesWithStore(cfg *config.Config, store repositories.CacheRepository, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:     cfg,
		Logger:     logger,
		CacheStore: store,
	}
	if err := deps.initServices(cfg); err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	if err := d.initProviders(cfg); err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	d.Cache = cache.NewService(d.CacheStore, cfg.Cache.Timeout, d.Logger.Named("cache"))

	priority := cfg.Providers.Priority
	if len(priority) == 0 {
		priority = providers.DefaultPriority
	}
	d.Engine = dispatch.NewEngine(d.Registry, d.ProviderClient, d.Cache, priority, d.Logger.Named("dispatch"))
	if len(d.Engine.Priority()) == 0 {
		d.Logger.Warn("provider priority list is empty; only explicitly requested providers will be tried")
	}
	return nil
}

// initCacheStore opens the store selected by CACHE_BACKEND
func (d *Dependencies) initCacheStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Cache.Backend {
	case config.CacheBackendPostgres:
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.DB = db
		d.CacheStore = postgres.NewCacheRepository(db, d.Logger)
		d.closers = append(d.closers, db.Close)

	case config.CacheBackendRedis:
		store := redisrepo.NewCacheRepository(
			redisrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
			cfg.Redis.KeyPrefix,
			d.Logger,
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.CacheStore = store
		d.closers = append(d.closers, store.Close)
		d.Logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))

	case config.CacheBackendMemory:
		d.CacheStore = memory.NewCacheRepository()
		d.Logger.Warn("using in-memory cache store; cached replies are lost on restart")

	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return nil
}

// initProviders builds the immutable provider registry and the HTTP client
// shared by all provider calls
func (d *Dependencies) initProviders(cfg *config.Config) error {
	settings := make(map[string]providers.ProviderConfig, len(cfg.Providers.Settings))
	for key, s := range cfg.Providers.Settings {
		settings[key] = providers.ProviderConfig{
			APIKey:   s.APIKey,
			Endpoint: s.Endpoint,
			Model:    s.Model,
			Timeout:  s.Timeout,
		}
	}

	registry, err := providers.NewRegistry(providers.Builtin(settings)...)
	if err != nil {
		return err
	}

	for key := range settings {
		if !registry.Has(key) {
			d.Logger.Warn("ignoring settings for unknown provider", zap.String("provider", key))
		}
	}

	configured := 0
	for _, key := range registry.Keys() {
		if registry.Configured(key) {
			configured++
			d.Logger.Info("provider available", zap.String("provider", key))
		} else {
			d.Logger.Info("provider registered without credential", zap.String("provider", key))
		}
	}
	if configured == 0 {
		d.Logger.Warn("no LLM providers configured")
	}

	d.Registry = registry
	d.HTTPClient = &http.Client{Timeout: longestCallTimeout(registry) + clientTimeoutSlack}
	d.ProviderClient = providers.NewClient(d.HTTPClient, d.Logger.Named("providers"))
	return nil
}

// clientTimeoutSlack keeps the shared http.Client deadline behind every
// per-call deadline
const clientTimeoutSlack = 5 * time.Second

func longestCallTimeout(registry *providers.Registry) time.Duration {
	var longest time.Duration
	for _, key := range registry.Keys() {
		d, err := registry.Resolve(key)
		if err != nil || !d.Configured() {
			continue
		}
		if t := d.CallTimeout(); t > longest {
			longest = t
		}
	}
	if longest == 0 {
		longest = providers.DefaultTimeout
	}
	return longest
}

// DispatchBudget is the longest a single dispatch can take when every
// configured candidate times out. A requested provider outside the priority
// list counts once, as do the cache lookup and write-through.
func (d *Dependencies) DispatchBudget() time.Duration {
	budget := 2 * d.Cache.Timeout()

	inPriority := make(map[string]bool)
	for _, key := range d.Engine.Priority() {
		inPriority[key] = true
		desc, err := d.Registry.Resolve(key)
		if err != nil || !desc.Configured() {
			continue
		}
		budget += desc.CallTimeout()
	}

	var extra time.Duration
	for _, key := range d.Registry.Keys() {
		if inPriority[key] {
			continue
		}
		desc, err := d.Registry.Resolve(key)
		if err != nil || !desc.Configured() {
			continue
		}
		if t := desc.CallTimeout(); t > extra {
			extra = t
		}
	}
	return budget + extra
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}
