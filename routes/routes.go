package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/chat-relay/app"
	"github.com/upb/chat-relay/handlers"
	"go.uber.org/zap"
)

// handlerSlack is added on top of the dispatch budget for decoding,
// validation and writing the response
const handlerSlack = 5 * time.Second

// requestTimeout covers a full fallback chain, not a single provider call
func requestTimeout(deps *app.Dependencies) time.Duration {
	return deps.DispatchBudget() + handlerSlack
}

// NewServer builds the HTTP server for deps. The configured write timeout is
// raised when it would cut off a reply from the last provider in the chain.
func NewServer(deps *app.Dependencies) *http.Server {
	cfg := deps.Config.Server

	writeTimeout := cfg.WriteTimeout
	if floor := requestTimeout(deps) + handlerSlack; writeTimeout < floor {
		deps.Logger.Info("raising server write timeout to cover the dispatch budget",
			zap.Duration("configured", writeTimeout),
			zap.Duration("write_timeout", floor))
		writeTimeout = floor
	}

	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      SetupRoutes(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: writeTimeout,
	}
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(deps)))

	// CORS middleware
	origins := deps.Config.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.Cache, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.Engine, deps.Logger.Named("http"))
	providersHandler := handlers.NewProvidersHandler(deps.Registry, deps.Engine.Priority(), deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	r.Post("/chat", chatHandler.HandleChat)
	r.Get("/providers", providersHandler.HandleList)

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
