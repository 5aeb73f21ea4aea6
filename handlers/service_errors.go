package handlers

import (
	"net/http"

	"github.com/upb/chat-relay/services"
	"github.com/upb/chat-relay/utils"
	"go.uber.org/zap"
)

// Client-facing messages for upstream failures. Provider error text can carry
// endpoints or upstream bodies, so it only goes to the logs.
const (
	msgProvidersUnavailable = "all providers are currently unavailable"
	msgProviderFailed       = "provider request failed"
	msgCacheUnavailable     = "cache store unavailable"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, err.Error(), details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, err.Error())

	case services.IsExhaustedError(err):
		logger.Warn("dispatch exhausted", zap.Error(err), zap.Any("details", details))
		writeErr = utils.WriteBadGateway(w, msgProvidersUnavailable)

	case services.IsNetworkError(err), services.IsExtractionError(err):
		logger.Warn("provider error", zap.Error(err), zap.Any("details", details))
		writeErr = utils.WriteBadGateway(w, msgProviderFailed)

	case services.IsStorageError(err):
		logger.Error("storage error", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusServiceUnavailable, msgCacheUnavailable, nil)

	case services.IsConfigurationError(err), services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
