package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Code      string `json:"code"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// ExecuteResponse carries the outcome of a successful run.
type ExecuteResponse struct {
	Stdout     string `json:"stdout"`
	Value      string `json:"value,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HandleExecute runs a snippet against the session's dataset.
func (h *DataHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}

	out, err := h.svc.Execute(r.Context(), sessionID, req.Code,
		time.Duration(req.TimeoutMS)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ExecuteResponse{
		Stdout:     out.Stdout,
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.HasValue {
		resp.Value = out.Value
	}
	writeJSON(w, http.StatusOK, resp)
}
