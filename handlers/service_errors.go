// Package handlers exposes the control plane over HTTP. Handlers stay
// thin: decode, call the service, map the result.
package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services"
	"github.com/agentgrid/control-plane/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err) || services.IsToolNotFoundError(err):
		writeErr = utils.WriteNotFound(w, err.Error())

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, err.Error(), details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, err.Error())

	case services.IsPolicyDeniedError(err):
		writeErr = utils.WriteForbidden(w, err.Error())

	case services.IsBudgetError(err) || services.IsCapacityError(err):
		writeErr = utils.WriteTooManyRequests(w, err.Error())

	case services.IsToolExecutionError(err):
		writeErr = utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse{
			Error:   "tool_execution_failed",
			Message: err.Error(),
			Details: details,
		})

	case services.IsExternalError(err):
		writeErr = utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse{
			Error:   "upstream_unavailable",
			Message: err.Error(),
		})

	default:
		logger.Error("unhandled service error", zap.Error(err))
		writeErr = utils.WriteInternalError(w, "An internal error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
