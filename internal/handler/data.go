package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/render"
	"github.com/patelnilay251/backend-data-forge/internal/sandbox"
	"github.com/patelnilay251/backend-data-forge/internal/service"
)

// Service is the slice of the business layer the handlers call.
// It is an interface so tests can substitute a mock (see data_test.go).
type Service interface {
	Upload(sessionID, name string, raw []byte) (*service.UploadResult, error)
	Describe(sessionID string) (dataset.Summary, error)
	Execute(ctx context.Context, sessionID, code string, timeout time.Duration) (*sandbox.Outcome, error)
	Visualize(ctx context.Context, sessionID, code string, timeout time.Duration) (*render.Result, error)
	QuickChart(ctx context.Context, sessionID, chartType string) (*render.Result, error)
}

// Sessions resolves and manages session identity for incoming requests.
type Sessions interface {
	Resolve(r *http.Request) (string, bool)
	NewID() string
	Evict(sessionID string)
}

// DataHandler serves the dataset upload, execution, and visualisation API.
type DataHandler struct {
	svc            Service
	sessions       Sessions
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewDataHandler(svc Service, sessions Sessions, maxUploadBytes int64, logger *slog.Logger) *DataHandler {
	return &DataHandler{
		svc:            svc,
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// sessionID extracts the caller's session or writes a validation error.
func (h *DataHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := h.sessions.Resolve(r)
	if !ok {
		writeError(w, apperror.ValidationFailed("session",
			"session ID is required: set the X-Session-ID header or the session_id query parameter"))
		return "", false
	}
	return id, true
}
