// Package handler contains the HTTP layer: request parsing, response
// shaping, and the mapping from domain errors to status codes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
)

// ErrorResponse is the standard error shape returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`            // machine-readable kind, e.g. "timeout_error"
	Message string `json:"message"`          // human-readable description
	Stdout  string `json:"stdout,omitempty"` // partial output produced before a failure
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status code.
//
// 422 covers the "request was well-formed but the snippet failed" family:
// execution errors, timeouts, and runs that produced no figure all carry
// caller-actionable detail, unlike a plain 400 or 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrParse):
			status = http.StatusBadRequest
			errorType = "parse_error"
		case errors.Is(err, apperror.ErrNoDataset):
			status = http.StatusNotFound
			errorType = "no_dataset"
		case errors.Is(err, apperror.ErrExecution):
			status = http.StatusUnprocessableEntity
			errorType = "execution_error"
		case errors.Is(err, apperror.ErrTimeout):
			status = http.StatusUnprocessableEntity
			errorType = "timeout_error"
		case errors.Is(err, apperror.ErrNoFigure):
			status = http.StatusUnprocessableEntity
			errorType = "no_figure"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Stdout:  appErr.Stdout,
		})
		return
	}

	// Unknown error: never leak internals to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
