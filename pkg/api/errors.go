package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeUnauthenticated   ErrorType = "unauthenticated"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeAuthUnavailable   ErrorType = "auth_unavailable"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	ErrorTypeVersionParse      ErrorType = "version_parse"
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeServerError       ErrorType = "server_error"
)

// APIError represents a structured error with type, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the
// top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewUnauthenticatedError creates an APIError for missing, malformed,
// expired, or unverifiable credentials.
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnauthenticated, Message: message}
}

// NewForbiddenError creates an APIError for a valid identity acting on
// a disallowed tenant.
func NewForbiddenError(message string) *APIError {
	return &APIError{Type: ErrorTypeForbidden, Message: message}
}

// NewAuthUnavailableError creates an APIError for a transient failure
// reaching an auth backend. Distinct from forbidden: "we could not
// check" is never "you are not allowed".
func NewAuthUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuthUnavailable, Message: message}
}

// NewNotFoundError creates an APIError for resources that cannot be
// found, including rows belonging to a different tenant.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewInvalidTransitionError creates an APIError for a status mutation
// out of a terminal state or an operation missing taxonomy fields.
func NewInvalidTransitionError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidTransition, Message: message}
}

// NewVersionParseError creates an APIError for a version string that
// cannot be parsed where strict comparison is required.
func NewVersionParseError(version string) *APIError {
	return &APIError{
		Type:    ErrorTypeVersionParse,
		Param:   "version",
		Message: fmt.Sprintf("cannot parse version %q", version),
	}
}

// NewInvalidRequestError creates an APIError for invalid request
// parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}
