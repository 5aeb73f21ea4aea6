package handlers

import (
	"net/http"

	"github.com/upb/chat-relay/utils"
	"go.uber.org/zap"
)

// ProviderCatalog lists registered providers
type ProviderCatalog interface {
	Keys() []string
	Configured(key string) bool
}

// ProviderInfo describes one registered provider. Credentials are never
// included.
type ProviderInfo struct {
	Key        string `json:"key"`
	Configured bool   `json:"configured"`
}

// ProvidersResponse is the body returned by GET /providers
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
	Priority  []string       `json:"priority"`
}

// ProvidersHandler exposes the provider registry
type ProvidersHandler struct {
	catalog  ProviderCatalog
	priority []string
	logger   *zap.Logger
}

// NewProvidersHandler creates a new ProvidersHandler
func NewProvidersHandler(catalog ProviderCatalog, priority []string, logger *zap.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		catalog:  catalog,
		priority: priority,
		logger:   logger,
	}
}

// HandleList handles GET /providers
func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys := h.catalog.Keys()
	response := ProvidersResponse{
		Providers: make([]ProviderInfo, 0, len(keys)),
		Priority:  h.priority,
	}
	if response.Priority == nil {
		response.Priority = []string{}
	}

	for _, key := range keys {
		response.Providers = append(response.Providers, ProviderInfo{
			Key:        key,
			Configured: h.catalog.Configured(key),
		})
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}
