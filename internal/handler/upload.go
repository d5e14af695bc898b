package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/session"
)

// UploadResponse echoes the session and describes the loaded dataset.
type UploadResponse struct {
	SessionID   string           `json:"session_id"`
	Name        string           `json:"name,omitempty"`
	Rows        int              `json:"rows"`
	Columns     int              `json:"columns"`
	ColumnNames []string         `json:"column_names"`
	Types       []string         `json:"types"`
	Preview     []map[string]any `json:"preview"`
}

// HandleUpload accepts a CSV as a multipart "file" part or as the raw
// request body. A request without a session ID starts a new session; the
// minted ID comes back in the response and its header.
func (h *DataHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	name, raw, err := h.readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID, ok := h.sessions.Resolve(r)
	if !ok {
		sessionID = h.sessions.NewID()
	}

	res, err := h.svc.Upload(sessionID, name, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set(session.HeaderName, res.SessionID)
	writeJSON(w, http.StatusOK, UploadResponse{
		SessionID:   res.SessionID,
		Name:        res.Name,
		Rows:        res.Summary.Rows,
		Columns:     len(res.Summary.Columns),
		ColumnNames: res.Summary.Columns,
		Types:       res.Summary.Types,
		Preview:     res.Summary.Preview,
	})
}

// readUpload pulls the CSV bytes out of the request: the multipart "file"
// part when present, the raw body otherwise.
func (h *DataHandler) readUpload(r *http.Request) (name string, raw []byte, err error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		raw, err = io.ReadAll(r.Body)
		if err != nil {
			return "", nil, uploadReadError(err)
		}
		return "", raw, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, uploadReadError(err)
		}
		return "", nil, apperror.ValidationFailed("file", "multipart upload must include a \"file\" part")
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != "" && ext != ".csv" {
		return "", nil, apperror.ValidationFailed("file", "only CSV files are supported")
	}

	raw, err = io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read uploaded file", slog.String("error", err.Error()))
		return "", nil, uploadReadError(err)
	}
	return header.Filename, raw, nil
}

func uploadReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.ValidationFailed("file", "uploaded file exceeds the size limit")
	}
	return apperror.ValidationFailed("file", "failed to read upload: "+err.Error())
}
