package rest

import (
	"encoding/json"
	"errors"
	"net/http"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// headers are already out
	}
}

func writeError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		writeJSON(w, httpErr.Status, errorResponse{Message: httpErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
}
