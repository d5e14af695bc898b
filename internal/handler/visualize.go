package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/render"
)

// VisualizeRequest is the body of POST /visualize. When Code is set the
// snippet drives the chart; otherwise ChartType picks a quick chart derived
// straight from the dataset.
type VisualizeRequest struct {
	Code      string `json:"code,omitempty"`
	ChartType string `json:"chart_type,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

const defaultChartType = "bar"

// HandleVisualize renders a chart for the session's dataset and responds
// with the raw image bytes. Errors keep the usual JSON error shape.
func (h *DataHandler) HandleVisualize(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req VisualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}

	var (
		res *render.Result
		err error
	)
	if req.Code != "" {
		res, err = h.svc.Visualize(r.Context(), sessionID, req.Code,
			time.Duration(req.TimeoutMS)*time.Millisecond)
	} else {
		chartType := req.ChartType
		if chartType == "" {
			chartType = defaultChartType
		}
		res, err = h.svc.QuickChart(r.Context(), sessionID, chartType)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", res.MIMEType)
	if _, err := w.Write(res.ImageBytes); err != nil {
		h.logger.Error("failed to write image response", slog.String("error", err.Error()))
	}
}
