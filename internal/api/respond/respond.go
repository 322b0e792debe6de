// Package respond centralizes JSON response writing and the mapping from
// service errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteServiceError maps a service-layer error onto the HTTP status space:
// validation failures are 400, missing resources 404, model rate limits
// 429, model connectivity problems 502, everything else 500. The message
// for generation failures is the user-facing category, not the raw error.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		switch gateway.KindOf(err) {
		case gateway.KindRateLimited:
			WriteError(w, http.StatusTooManyRequests, err.Error())
		case gateway.KindNetwork, gateway.KindServiceUnavailable:
			WriteError(w, http.StatusBadGateway, err.Error())
		default:
			WriteInternalError(w, err.Error())
		}
	}
}
