package errors

import (
	"net/http"
	"time"
)

// ErrorHandler normalizes errors and renders the uniform API error envelope.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HandleHTTPError maps an error to an HTTP status and response body, logging
// server-side context for unexpected failures. Internal details never leak
// into the response for 5xx errors.
func (h *ErrorHandler) HandleHTTPError(err error, path string) (int, ErrorResponse) {
	stdErr := h.normalizeError(err)
	status := StatusFor(stdErr.Code)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"path":      path,
			"errorCode": string(stdErr.Code),
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		})
		return status, ErrorResponse{Message: "Internal server error", Code: string(stdErr.Code)}
	}

	return status, ErrorResponse{Message: stdErr.Message, Code: string(stdErr.Code)}
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
