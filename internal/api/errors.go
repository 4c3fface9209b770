package api

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code" example:"session_expired"`
	Message string `json:"message" example:"Your session expired due to inactivity."`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}
