package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mithix/backend/internal/services"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Message string                `json:"message"`
	Error   string                `json:"error,omitempty"`
	Errors  []services.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
