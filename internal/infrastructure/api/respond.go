package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopify-improvement-core/internal/domain"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMisconfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExternalServiceUnavailable), errors.Is(err, domain.ErrExternalUpdateFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and hides their details from the client
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.message, Details: verr.details})
		return
	}

	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message})
}
