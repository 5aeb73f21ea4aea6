package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/chat-relay/app"
	"github.com/upb/chat-relay/config"
	"github.com/upb/chat-relay/repositories/memory"
	"go.uber.org/zap/zaptest"
)

type upstreams struct {
	openai, anthropic      *httptest.Server
	openaiHits, claudeHits int32
}

// newUpstreams starts a failing OpenAI-compatible server and a working
// Anthropic-compatible one
func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{}

	u.openai = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.openaiHits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	t.Cleanup(u.openai.Close)

	u.anthropic = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.claudeHits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hello from Claude"}]}`))
	}))
	t.Cleanup(u.anthropic.Close)

	return u
}

func testConfig(t *testing.T, u *upstreams) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:               "localhost",
			Port:               3001,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    5 * time.Second,
			CORSAllowedOrigins: []string{"*"},
		},
		Cache: config.CacheConfig{
			Backend: config.CacheBackendMemory,
			Timeout: time.Second,
		},
		Providers: config.ProvidersConfig{
			Priority: []string{"openai", "anthropic"},
			Settings: map[string]config.ProviderSettings{
				"openai":    {APIKey: "sk-openai", Endpoint: u.openai.URL},
				"anthropic": {APIKey: "sk-ant", Endpoint: u.anthropic.URL},
			},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func newTestServer(t *testing.T, u *upstreams) *httptest.Server {
	t.Helper()
	deps, err := app.NewDependenciesWithStore(testConfig(t, u), memory.NewCacheRepository(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/chat", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestChatEndpoint(t *testing.T) {
	u := newUpstreams(t)
	ts := newTestServer(t, u)

	t.Run("falls back to the next provider", func(t *testing.T) {
		resp, body := postChat(t, ts, `{"message":"hello"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Hello from Claude", body["reply"])
		assert.Equal(t, "anthropic", body["provider"])
		assert.Equal(t, false, body["cached"])
		assert.Equal(t, int32(1), atomic.LoadInt32(&u.openaiHits))
		assert.Equal(t, int32(1), atomic.LoadInt32(&u.claudeHits))
	})

	t.Run("second request is served from cache", func(t *testing.T) {
		resp, body := postChat(t, ts, `{"message":"hello","provider":"openai"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Hello from Claude", body["reply"])
		assert.Equal(t, "anthropic", body["provider"])
		assert.Equal(t, true, body["cached"])
		assert.Equal(t, int32(1), atomic.LoadInt32(&u.openaiHits))
		assert.Equal(t, int32(1), atomic.LoadInt32(&u.claudeHits))
	})

	t.Run("missing message", func(t *testing.T) {
		resp, body := postChat(t, ts, `{"provider":"openai"}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Message is required", body["message"])
	})

	t.Run("GET is not routed", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/chat")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestChatEndpoint_AllProvidersFail(t *testing.T) {
	u := newUpstreams(t)
	u.anthropic.Close()
	ts := newTestServer(t, u)

	resp, body := postChat(t, ts, `{"message":"hello"}`)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "bad_gateway", body["error"])
	assert.Equal(t, "all providers are currently unavailable", body["message"])
}

func TestNewServer_WriteTimeoutCoversFallbackChain(t *testing.T) {
	u := newUpstreams(t)

	release := make(chan struct{})
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(hang.Close)
	t.Cleanup(func() { close(release) })

	const callTimeout = 200 * time.Millisecond
	cfg := testConfig(t, u)
	cfg.Server.WriteTimeout = 250 * time.Millisecond
	cfg.Providers.Priority = []string{"jules", "openai", "anthropic"}
	cfg.Providers.Settings = map[string]config.ProviderSettings{
		"jules":     {APIKey: "sk-jules", Endpoint: hang.URL, Timeout: callTimeout},
		"openai":    {APIKey: "sk-openai", Endpoint: hang.URL, Timeout: callTimeout},
		"anthropic": {APIKey: "sk-ant", Endpoint: u.anthropic.URL, Timeout: callTimeout},
		"ollama":    {Endpoint: hang.URL, Timeout: callTimeout},
	}

	deps, err := app.NewDependenciesWithStore(cfg, memory.NewCacheRepository(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(nil)
	ts.Config = NewServer(deps)
	ts.Start()
	t.Cleanup(ts.Close)

	assert.Greater(t, ts.Config.WriteTimeout, deps.DispatchBudget())

	resp, body := postChat(t, ts, `{"message":"slow chain"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello from Claude", body["reply"])
	assert.Equal(t, "anthropic", body["provider"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&u.claudeHits))
}

func TestNewServer_KeepsLongerWriteTimeout(t *testing.T) {
	cfg := testConfig(t, newUpstreams(t))
	cfg.Server.WriteTimeout = time.Hour

	deps, err := app.NewDependenciesWithStore(cfg, memory.NewCacheRepository(), zaptest.NewLogger(t))
	require.NoError(t, err)

	srv := NewServer(deps)
	assert.Equal(t, time.Hour, srv.WriteTimeout)
	assert.Equal(t, cfg.Server.ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, "localhost:3001", srv.Addr)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, newUpstreams(t))

	t.Run("health check returns ok", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("readiness pings the cache store", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ready", body["status"])
	})
}

func TestProvidersEndpoint(t *testing.T) {
	ts := newTestServer(t, newUpstreams(t))

	resp, err := http.Get(ts.URL + "/providers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []struct {
			Key        string `json:"key"`
			Configured bool   `json:"configured"`
		} `json:"providers"`
		Priority []string `json:"priority"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, []string{"openai", "anthropic"}, body.Priority)
	assert.Len(t, body.Providers, 5)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t, newUpstreams(t))

	resp, err := http.Get(ts.URL + "/api/v1/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "endpoint not found", body["error"])
}

func TestCORSMiddleware(t *testing.T) {
	ts := newTestServer(t, newUpstreams(t))

	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/chat", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
