package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deployq/deployq/pkg/api"
	"github.com/deployq/deployq/pkg/storage"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		errType api.ErrorType
		want    int
	}{
		{api.ErrorTypeUnauthenticated, http.StatusUnauthorized},
		{api.ErrorTypeForbidden, http.StatusForbidden},
		{api.ErrorTypeAuthUnavailable, http.StatusServiceUnavailable},
		{api.ErrorTypeNotFound, http.StatusNotFound},
		{api.ErrorTypeInvalidTransition, http.StatusConflict},
		{api.ErrorTypeVersionParse, http.StatusUnprocessableEntity},
		{api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{api.ErrorTypeServerError, http.StatusInternalServerError},
		{api.ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			got := HTTPStatusFromError(&api.APIError{Type: tt.errType})
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{
			name:       "typed api error",
			err:        api.NewVersionParseError("garbage"),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   api.ErrorTypeVersionParse,
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("handling request: %w", api.NewForbiddenError("nope")),
			wantStatus: http.StatusForbidden,
			wantType:   api.ErrorTypeForbidden,
		},
		{
			name:       "storage not found",
			err:        storage.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   api.ErrorTypeNotFound,
		},
		{
			name:       "storage conflict",
			err:        storage.ErrConflict,
			wantStatus: http.StatusConflict,
			wantType:   api.ErrorTypeInvalidTransition,
		},
		{
			name:       "unknown error stays opaque",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantType:   api.ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp api.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshaling body: %v", err)
			}
			if resp.Error.Type != tt.wantType {
				t.Errorf("expected error type %s, got %s", tt.wantType, resp.Error.Type)
			}
			if tt.name == "unknown error stays opaque" && resp.Error.Message == tt.err.Error() {
				t.Error("internal error message leaked to the client")
			}
		})
	}
}
