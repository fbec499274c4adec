package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/commonplacehq/commonplace/pkg/api"
)

// writeJSON writes a success or business-failure payload with HTTP 200.
// Business outcomes (not found, unauthorized, missing field) are normal
// payloads with success:false, never transport errors.
func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// fail writes a business failure.
func fail(message string) api.MessageResponse {
	return api.MessageResponse{Success: false, Message: message}
}

// writeError writes a transport-level error (malformed body, unexpected
// fault). Only these use HTTP error status codes.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: api.ErrorDetail{
			Message: message,
			Type:    "error",
			Code:    code,
		},
	})
}
