// Package httpapi exposes the REST surface for price resolution.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"price-resolver/internal/pricing"
)

func errRequiredParam(name string) error {
	return fmt.Errorf("%w: required parameter is missing: %s", pricing.ErrInvalidArgument, name)
}

func errInvalidParam(name string) error {
	return fmt.Errorf("%w: parameter '%s' has an invalid value", pricing.ErrInvalidArgument, name)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error payload with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}

// statusFromError maps the domain error taxonomy to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFromError picks the client-facing message for an error.
func messageFromError(err error) string {
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		return "Price not found for product"
	case errors.Is(err, pricing.ErrServiceUnavailable):
		return "Service unavailable. Please try again later."
	case errors.Is(err, pricing.ErrInvalidArgument):
		return err.Error()
	default:
		return "Unexpected internal error"
	}
}
