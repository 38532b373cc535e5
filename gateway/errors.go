package gateway

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/pkg/errors"
)

// APIError is a non-2xx response from the storefront API. The JSON fields mirror the
// server's error body: {status, error, message, fieldErrors, timestamp}.
type APIError struct {
	StatusCode  int               `json:"status"`                // HTTP status code
	ErrorText   string            `json:"error,omitempty"`       // Short reason, e.g. "Unauthorized"
	Message     string            `json:"message,omitempty"`     // Human readable message, shown verbatim to the user
	FieldErrors map[string]string `json:"fieldErrors,omitempty"` // Per-field validation messages
	Timestamp   string            `json:"timestamp,omitempty"`   // Server time the error was produced

	Method string `json:"-"` // Request method that failed
	Path   string `json:"-"` // Request path that failed
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.ErrorText
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unauthorized reports whether the API rejected the bearer token (or its absence)
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Is lets callers match API failures against the shared sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case interrors.ErrUnauthorized:
		return e.Unauthorized()
	case interrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case interrors.ErrInvalidInput:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// UserMessage returns the server's message carried by err when present, otherwise fallback.
// Transport failures and unknown errors always produce the fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// FieldMessage prefers the per-field validation messages (ordered by field name), then the
// server's message, then fallback. Used where a form can fail on several fields at once.
func FieldMessage(err error, fallback string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if len(apiErr.FieldErrors) > 0 {
		fields := make([]string, 0, len(apiErr.FieldErrors))
		for field := range apiErr.FieldErrors {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		msgs := make([]string, 0, len(fields))
		for _, field := range fields {
			msgs = append(msgs, apiErr.FieldErrors[field])
		}
		return strings.Join(msgs, ", ")
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
