package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/upb/chat-relay/services/dispatch"
	"github.com/upb/chat-relay/utils"
	"go.uber.org/zap"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message  string `json:"message" validate:"required"`
	Provider string `json:"provider,omitempty" validate:"omitempty,max=64"`
}

// ChatResponse is the body returned by POST /chat
type ChatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
}

// ReplyService answers a prompt, optionally preferring one provider
type ReplyService interface {
	GetReply(ctx context.Context, prompt, provider string) (*dispatch.Result, error)
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service ReplyService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ReplyService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var req ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		logger.Debug("invalid chat request body", zap.Error(err))
		if err := utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"reason": err.Error()}); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		if _, missing := utils.GetValidationFields(err)["message"]; missing {
			if err := utils.WriteBadRequest(w, "Message is required", nil); err != nil {
				logger.Error("failed to write bad request response", zap.Error(err))
			}
			return
		}
		HandleValidationError(w, err, logger)
		return
	}

	start := time.Now()
	result, err := h.service.GetReply(r.Context(), req.Message, strings.TrimSpace(req.Provider))
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	logger.Info("chat answered",
		zap.String("provider", result.Provider),
		zap.Bool("cached", result.Cached),
		zap.Int("attempts", len(result.Attempts)),
		zap.Duration("elapsed", time.Since(start)))

	if err := utils.WriteJSON(w, http.StatusOK, ChatResponse{
		Reply:    result.Reply,
		Provider: result.Provider,
		Cached:   result.Cached,
	}); err != nil {
		logger.Error("failed to write chat response", zap.Error(err))
	}
}
