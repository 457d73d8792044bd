package server

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterMinutes int    `json:"retry_after_minutes,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errName, message string) {
	writeJSON(w, status, errorResponse{
		Error:   errName,
		Message: message,
	})
}
