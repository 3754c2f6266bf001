package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing_prerequisites,omitempty"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDomainError maps a service error to its status code and,
// for prerequisite failures, surfaces the unmet refs to the caller.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var prereqErr *PrereqError
	if errors.As(err, &prereqErr) {
		resp.Missing = prereqErr.Missing
	}
	RespondWithJSON(w, HTTPStatusFromError(err), resp)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
