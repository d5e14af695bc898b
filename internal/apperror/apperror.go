package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrParse      = errors.New("parse error")
	ErrNoDataset  = errors.New("no dataset")
	ErrExecution  = errors.New("execution error")
	ErrTimeout    = errors.New("timeout")
	ErrNoFigure   = errors.New("no figure")
	ErrValidation = errors.New("Validation Error")
)

// AppError is the typed failure returned by the core to its callers.
// Sandbox failures additionally carry any stdout the snippet produced
// before the failure point.
type AppError struct {
	Err     error  // sentinel identifying the error kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Stdout  string // Optional: partial output captured before the failure
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithStdout returns a copy of the error carrying captured partial output.
func (e *AppError) WithStdout(stdout string) *AppError {
	clone := *e
	clone.Stdout = stdout
	return &clone
}

func ParseFailed(message string) *AppError {
	return &AppError{
		Err:     ErrParse,
		Message: message,
	}
}

func NoDataset(sessionID string) *AppError {
	return &AppError{
		Err:     ErrNoDataset,
		Message: fmt.Sprintf("no dataset has been uploaded for session %s", sessionID),
	}
}

func ExecutionFailed(message string) *AppError {
	return &AppError{
		Err:     ErrExecution,
		Message: message,
	}
}

func Timeout(limit time.Duration) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("execution exceeded the %s time limit", limit),
	}
}

// NoFigure returns an AppError indicating a render was requested but the
// snippet never produced a chart. HTTP handlers map this to 422.
func NoFigure(message string) *AppError {
	if message == "" {
		message = "the snippet did not produce a figure"
	}
	return &AppError{
		Err:     ErrNoFigure,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}
