package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var missingInput *domain.ErrMissingInput
	var validation *domain.ErrValidation
	var challengeRejected *domain.ErrChallengeRejected
	var unknownCurrency *domain.ErrUnknownCurrency
	var malformed *domain.ErrMalformedDocument
	var sessionNotFound *domain.ErrSessionNotFound
	var unauthorized *domain.ErrUnauthorized
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &missingInput):
		logger.Debug("missing input", zap.String("field", missingInput.Field))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &challengeRejected):
		logger.Warn("challenge response rejected", zap.String("reason", challengeRejected.Reason))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unknownCurrency):
		logger.Error("unknown currency in statement", zap.String("code", unknownCurrency.Code))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &malformed):
		logger.Error("malformed statement document", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &sessionNotFound):
		logger.Debug("session not found", zap.String("session_id", sessionNotFound.ID))
		writeError(w, http.StatusGone, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure",
			zap.String("service", external.Service),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
