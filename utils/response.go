package utils

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every JSON API response.
type Envelope struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, Envelope{Error: msg})
}

// RespondOK wraps data in a successful envelope.
func RespondOK(w http.ResponseWriter, data any, warnings ...string) {
	RespondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Warnings: warnings})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
