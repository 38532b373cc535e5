package apitest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	msgFullAuthRequired   = "Full authentication is required to access this resource"
	msgValidationFailed   = "One or more fields are invalid"
	msgInvalidCredentials = "Invalid username or password"
)

// errorBody is the API's error contract
type errorBody struct {
	Status      int               `json:"status"`
	Error       string            `json:"error"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("apitest: encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string, fieldErrors map[string]string) {
	writeJSON(w, status, errorBody{
		Status:      status,
		Error:       errorText(status),
		Message:     message,
		FieldErrors: fieldErrors,
		Timestamp:   time.Now().Format(createdAtLayout),
	})
}

func validationError(w http.ResponseWriter, fieldErrors map[string]string) {
	writeError(w, http.StatusBadRequest, msgValidationFailed, fieldErrors)
}

func errorText(status int) string {
	if status == http.StatusBadRequest {
		return "Validation Failed"
	}
	return http.StatusText(status)
}

func decodeBody(r *http.Request, out any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(out) == nil
}
