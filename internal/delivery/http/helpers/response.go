package helpers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tagset/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInvalidValue     = "invalid_value"
	ErrCodeCapacityExceeded = "capacity_exceeded"
	ErrCodeInternalError    = "internal_error"
)

// APIError is the error object in the response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the envelope for all API responses. Exactly one of Data and Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess writes statusCode and an envelope carrying data.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data})
}

// WriteJSONError writes statusCode and an envelope carrying the error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Error: &APIError{Code: code, Message: message},
	})
}

// ErrorStatus maps a domain error to its HTTP status and error code.
// Anything unrecognised is an internal error.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidValue):
		return http.StatusUnprocessableEntity, ErrCodeInvalidValue
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity, ErrCodeCapacityExceeded
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}
