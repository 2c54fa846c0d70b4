package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeUnauthenticated:
		return http.StatusUnauthorized
	case api.ErrorTypeForbidden:
		return http.StatusForbidden
	case api.ErrorTypeAuthUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeInvalidTransition:
		return http.StatusConflict
	case api.ErrorTypeVersionParse:
		return http.StatusUnprocessableEntity
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps any error from the queue engine or a store to a JSON
// error response. Storage sentinels become the matching API error types;
// everything unrecognized becomes a 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		// Already typed.
	case errors.Is(err, storage.ErrNotFound):
		apiErr = api.NewNotFoundError("deployment not found")
	case errors.Is(err, storage.ErrConflict):
		apiErr = api.NewInvalidTransitionError("deployment was modified concurrently")
	default:
		apiErr = api.NewServerError("internal server error")
	}
	WriteAPIError(w, apiErr)
}
