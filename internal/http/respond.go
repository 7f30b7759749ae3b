package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendsmart/internal/core"
	"spendsmart/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps domain errors to HTTP statuses. Validation
// sentinels are the caller's fault; anything else is ours.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrMissingUser),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrMissingAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidType):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
