package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"asset-catalog/internal/storage"
)

var (
	ErrMissingFile        = errors.New("no file uploaded")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("image not found")
	// ErrStorageFailure wraps backend failures while placing or removing bytes.
	ErrStorageFailure = errors.New("storage failure")
	// ErrRecordFailure wraps catalog failures while persisting or removing rows.
	ErrRecordFailure = errors.New("record failure")
)

// envelope is the body shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: status < 400, Message: msg})
}

// errorStatus maps an error to the status and message shown to clients.
// fallback is the message used for server-side failures, whose detail is
// only ever logged.
func errorStatus(err error, maxBytes int64, fallback string) (int, string) {
	var tooBig *http.MaxBytesError

	switch {
	case errors.Is(err, ErrMissingFile), errors.Is(err, storage.ErrEmpty):
		return http.StatusBadRequest, "No file uploaded"
	case errors.Is(err, storage.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusBadRequest, fmt.Sprintf("File size too large. Maximum size is %s", sizeLabel(maxBytes))
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusBadRequest, "Only image files are allowed"
	case errors.Is(err, ErrMissingCredentials):
		return http.StatusBadRequest, "Email and password are required"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Image not found"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// sizeLabel renders a byte count the way it is shown in error messages:
// whole mebibytes as "5MB", anything else in KB.
func sizeLabel(n int64) string {
	if n <= 0 {
		n = storage.DefaultMaxBytes
	}
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%dKB", (n+1023)>>10)
}
