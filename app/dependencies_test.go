package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/chat-relay/config"
	"github.com/upb/chat-relay/repositories/memory"
	"github.com/upb/chat-relay/services/providers"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Cache: config.CacheConfig{
			Backend: config.CacheBackendMemory,
			Timeout: time.Second,
		},
		Providers: config.ProvidersConfig{
			Settings: map[string]config.ProviderSettings{
				"openai": {APIKey: "sk-test"},
			},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestNewDependencies(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.Nil(t, deps.DB)
		assert.IsType(t, &memory.CacheRepository{}, deps.CacheStore)
		assert.NotNil(t, deps.Registry)
		assert.NotNil(t, deps.ProviderClient)
		assert.NotNil(t, deps.Cache)
		assert.NotNil(t, deps.Engine)
		assert.Equal(t, providers.DefaultPriority, deps.Engine.Priority())
		assert.True(t, deps.Registry.Configured("openai"))
		assert.False(t, deps.Registry.Configured("jules"))

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("redis backend", func(t *testing.T) {
		ctx := context.Background()
		server := miniredis.RunT(t)

		cfg := testConfig(t)
		cfg.Cache.Backend = config.CacheBackendRedis
		cfg.Redis = config.RedisConfig{Addr: server.Addr(), KeyPrefix: "test"}

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, deps.Cache.Set(ctx, "hello", "hi", "openai"))
		entry, err := deps.Cache.Get(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "hi", entry.Reply)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("redis unavailable", func(t *testing.T) {
		server := miniredis.RunT(t)
		addr := server.Addr()
		server.Close()

		cfg := testConfig(t)
		cfg.Cache.Backend = config.CacheBackendRedis
		cfg.Redis = config.RedisConfig{Addr: addr}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize cache store")
	})

	t.Run("database connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache.Backend = config.CacheBackendPostgres
		cfg.Database = config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "relay",
			Database: "chat_relay",
			SSLMode:  "disable",
		}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize cache store")
	})

	t.Run("priority override drops unknown keys", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.Priority = []string{"ollama", "nope", "openai"}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"ollama", "openai"}, deps.Engine.Priority())
	})
}

func TestNewDependenciesWithStore(t *testing.T) {
	store := memory.NewCacheRepository()

	deps, err := NewDependenciesWithStore(testConfig(t), store, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, store, deps.CacheStore)

	// the caller owns the store, so Close has nothing to release
	assert.NoError(t, deps.Close(context.Background()))
}

func TestDependencies_DispatchBudget(t *testing.T) {
	t.Run("default priority", func(t *testing.T) {
		deps, err := NewDependenciesWithStore(testConfig(t), memory.NewCacheRepository(), zaptest.NewLogger(t))
		require.NoError(t, err)

		// openai and ollama are the configured providers; both use the default timeout
		assert.Equal(t, 2*time.Second+2*providers.DefaultTimeout, deps.DispatchBudget())
		assert.Equal(t, providers.DefaultTimeout+clientTimeoutSlack, deps.HTTPClient.Timeout)
	})

	t.Run("explicit timeouts and a provider outside the priority list", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.Priority = []string{"openai", "anthropic", "gemini"}
		cfg.Providers.Settings = map[string]config.ProviderSettings{
			"openai":    {APIKey: "sk-openai", Timeout: 10 * time.Second},
			"anthropic": {APIKey: "sk-ant", Timeout: 20 * time.Second},
			"ollama":    {Timeout: 3 * time.Second},
		}

		deps, err := NewDependenciesWithStore(cfg, memory.NewCacheRepository(), zaptest.NewLogger(t))
		require.NoError(t, err)

		// two cache operations, openai, anthropic, then ollama if requested;
		// gemini and jules have no credential and cost nothing
		assert.Equal(t, 35*time.Second, deps.DispatchBudget())
		assert.Equal(t, 20*time.Second+clientTimeoutSlack, deps.HTTPClient.Timeout)
	})
}
