package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/chat-relay/services/providers"
	"go.uber.org/zap"
)

func TestHandleList(t *testing.T) {
	registry, err := providers.NewRegistry(providers.Builtin(map[string]providers.ProviderConfig{
		providers.OpenAI: {APIKey: "sk-secret-value"},
	})...)
	require.NoError(t, err)

	handler := NewProvidersHandler(registry, []string{"openai", "ollama"}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/providers", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-secret-value")

	var response ProvidersResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, []string{"openai", "ollama"}, response.Priority)
	require.Len(t, response.Providers, 5)

	configured := make(map[string]bool)
	for _, p := range response.Providers {
		configured[p.Key] = p.Configured
	}
	assert.True(t, configured["openai"])
	assert.True(t, configured["ollama"])
	assert.False(t, configured["anthropic"])
	assert.False(t, configured["jules"])
	assert.False(t, configured["gemini"])
}

func TestHandleList_EmptyPriority(t *testing.T) {
	registry, err := providers.NewRegistry()
	require.NoError(t, err)

	handler := NewProvidersHandler(registry, nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/providers", nil))

	assert.JSONEq(t, `{"providers":[],"priority":[]}`, w.Body.String())
}
