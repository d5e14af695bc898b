package handler

import (
	"net/http"
)

// DescribeResponse reports the schema of the session's active dataset.
type DescribeResponse struct {
	SessionID   string   `json:"session_id"`
	Rows        int      `json:"rows"`
	Columns     int      `json:"columns"`
	ColumnNames []string `json:"column_names"`
	Types       []string `json:"types"`
}

// HandleDescribe serves GET /dataset.
func (h *DataHandler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sum, err := h.svc.Describe(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DescribeResponse{
		SessionID:   sessionID,
		Rows:        sum.Rows,
		Columns:     len(sum.Columns),
		ColumnNames: sum.Columns,
		Types:       sum.Types,
	})
}

// HandleEvict serves DELETE /dataset: the session and its dataset are
// discarded immediately instead of waiting for the idle TTL.
func (h *DataHandler) HandleEvict(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	h.sessions.Evict(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
