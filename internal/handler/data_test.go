package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/handler"
	"github.com/patelnilay251/backend-data-forge/internal/render"
	"github.com/patelnilay251/backend-data-forge/internal/sandbox"
	"github.com/patelnilay251/backend-data-forge/internal/service"
	"github.com/patelnilay251/backend-data-forge/internal/session"
)

// mockService records the last call and returns canned results.
type mockService struct {
	uploadRes  *service.UploadResult
	describeS  dataset.Summary
	executeOut *sandbox.Outcome
	renderRes  *render.Result
	err        error

	gotSession string
	gotCode    string
	gotTimeout time.Duration
	gotChart   string
	gotRaw     []byte
	gotName    string
}

func (m *mockService) Upload(sessionID, name string, raw []byte) (*service.UploadResult, error) {
	m.gotSession, m.gotName, m.gotRaw = sessionID, name, raw
	return m.uploadRes, m.err
}

func (m *mockService) Describe(sessionID string) (dataset.Summary, error) {
	m.gotSession = sessionID
	return m.describeS, m.err
}

func (m *mockService) Execute(_ context.Context, sessionID, code string, timeout time.Duration) (*sandbox.Outcome, error) {
	m.gotSession, m.gotCode, m.gotTimeout = sessionID, code, timeout
	return m.executeOut, m.err
}

func (m *mockService) Visualize(_ context.Context, sessionID, code string, timeout time.Duration) (*render.Result, error) {
	m.gotSession, m.gotCode, m.gotTimeout = sessionID, code, timeout
	return m.renderRes, m.err
}

func (m *mockService) QuickChart(_ context.Context, sessionID, chartType string) (*render.Result, error) {
	m.gotSession, m.gotChart = sessionID, chartType
	return m.renderRes, m.err
}

// mockSessions resolves like the real coordinator but mints fixed IDs.
type mockSessions struct {
	nextID  string
	evicted []string
}

func (m *mockSessions) Resolve(r *http.Request) (string, bool) {
	if id := r.Header.Get(session.HeaderName); id != "" {
		return id, true
	}
	if id := r.URL.Query().Get(session.QueryParam); id != "" {
		return id, true
	}
	return "", false
}

func (m *mockSessions) NewID() string { return m.nextID }

func (m *mockSessions) Evict(sessionID string) {
	m.evicted = append(m.evicted, sessionID)
}

func newHandler(svc *mockService, sessions *mockSessions) *handler.DataHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewDataHandler(svc, sessions, 1<<20, logger)
}

func decodeError(t *testing.T, body *bytes.Buffer) handler.ErrorResponse {
	t.Helper()
	var er handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&er))
	return er
}

func TestHandleUploadMultipart(t *testing.T) {
	svc := &mockService{
		uploadRes: &service.UploadResult{
			SessionID: "fresh1",
			Name:      "sales.csv",
			Summary: dataset.Summary{
				Columns: []string{"region", "units"},
				Types:   []string{"string", "int"},
				Rows:    4,
				Preview: []map[string]any{{"region": "north", "units": 10}},
			},
		},
	}
	h := newHandler(svc, &mockSessions{nextID: "fresh1"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("region,units\nnorth,10\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	h.HandleUpload(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fresh1", rr.Header().Get(session.HeaderName))
	assert.Equal(t, "fresh1", svc.gotSession)
	assert.Equal(t, "sales.csv", svc.gotName)
	assert.Equal(t, []byte("region,units\nnorth,10\n"), svc.gotRaw)

	var resp handler.UploadResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "fresh1", resp.SessionID)
	assert.Equal(t, 4, resp.Rows)
	assert.Equal(t, 2, resp.Columns)
	assert.Equal(t, []string{"region", "units"}, resp.ColumnNames)
}

func TestHandleUploadRawBodyReusesSession(t *testing.T) {
	svc := &mockService{
		uploadRes: &service.UploadResult{SessionID: "keep", Summary: dataset.Summary{Rows: 1}},
	}
	h := newHandler(svc, &mockSessions{nextID: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("a,b\n1,2\n"))
	req.Header.Set(session.HeaderName, "keep")
	rr := httptest.NewRecorder()

	h.HandleUpload(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "keep", svc.gotSession)
	assert.Equal(t, []byte("a,b\n1,2\n"), svc.gotRaw)
}

func TestHandleUploadRejectsNonCSVFilename(t *testing.T) {
	h := newHandler(&mockService{}, &mockSessions{nextID: "x"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	h.HandleUpload(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeError(t, rr.Body).Error)
}

func TestHandleUploadParseError(t *testing.T) {
	svc := &mockService{err: apperror.ParseFailed("record on line 3: wrong number of fields")}
	h := newHandler(svc, &mockSessions{nextID: "x"})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("a,b\n1\n"))
	rr := httptest.NewRecorder()

	h.HandleUpload(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	er := decodeError(t, rr.Body)
	assert.Equal(t, "parse_error", er.Error)
	assert.Contains(t, er.Message, "line 3")
}

func TestHandleExecute(t *testing.T) {
	svc := &mockService{
		executeOut: &sandbox.Outcome{
			Stdout:   "hello\n",
			Value:    "42",
			HasValue: true,
			Duration: 37 * time.Millisecond,
		},
	}
	h := newHandler(svc, &mockSessions{})

	body := `{"code":"print('hello')\n42","timeout_ms":2000}`
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(body))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "s1", svc.gotSession)
	assert.Equal(t, 2*time.Second, svc.gotTimeout)

	var resp handler.ExecuteResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "hello\n", resp.Stdout)
	assert.Equal(t, "42", resp.Value)
	assert.Equal(t, int64(37), resp.DurationMS)
}

func TestHandleExecuteMissingSession(t *testing.T) {
	h := newHandler(&mockService{}, &mockSessions{})

	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(`{"code":"1"}`))
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeError(t, rr.Body).Error)
}

func TestHandleExecuteInvalidJSON(t *testing.T) {
	h := newHandler(&mockService{}, &mockSessions{})

	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(`{"code":`))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleExecute(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleExecuteErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "no dataset",
			err:        apperror.NoDataset("s1"),
			wantStatus: http.StatusNotFound,
			wantKind:   "no_dataset",
		},
		{
			name:       "execution error",
			err:        apperror.ExecutionFailed("boom").WithStdout("partial\n"),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "execution_error",
		},
		{
			name:       "timeout",
			err:        apperror.Timeout(5 * time.Second),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "timeout_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&mockService{err: tt.err}, &mockSessions{})

			req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(`{"code":"x"}`))
			req.Header.Set(session.HeaderName, "s1")
			rr := httptest.NewRecorder()

			h.HandleExecute(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			er := decodeError(t, rr.Body)
			assert.Equal(t, tt.wantKind, er.Error)
			if tt.wantKind == "execution_error" {
				assert.Equal(t, "partial\n", er.Stdout)
			}
		})
	}
}

func TestHandleVisualizeWithCode(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	svc := &mockService{renderRes: &render.Result{ImageBytes: png, MIMEType: "image/png"}}
	h := newHandler(svc, &mockSessions{})

	body := `{"code":"plot.bar(df, x='region', y='units')"}`
	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewBufferString(body))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleVisualize(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, png, rr.Body.Bytes())
	assert.Equal(t, "plot.bar(df, x='region', y='units')", svc.gotCode)
}

func TestHandleVisualizeQuickChartFallback(t *testing.T) {
	svc := &mockService{renderRes: &render.Result{ImageBytes: []byte{1}, MIMEType: "image/png"}}
	h := newHandler(svc, &mockSessions{})

	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewBufferString(`{"chart_type":"line"}`))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleVisualize(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "line", svc.gotChart)
}

func TestHandleVisualizeDefaultsToBar(t *testing.T) {
	svc := &mockService{renderRes: &render.Result{ImageBytes: []byte{1}, MIMEType: "image/png"}}
	h := newHandler(svc, &mockSessions{})

	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewBufferString(`{}`))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleVisualize(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bar", svc.gotChart)
}

func TestHandleVisualizeNoFigure(t *testing.T) {
	svc := &mockService{err: apperror.NoFigure("").WithStdout("just text\n")}
	h := newHandler(svc, &mockSessions{})

	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewBufferString(`{"code":"df.nrow()"}`))
	req.Header.Set(session.HeaderName, "s1")
	rr := httptest.NewRecorder()

	h.HandleVisualize(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	er := decodeError(t, rr.Body)
	assert.Equal(t, "no_figure", er.Error)
	assert.Equal(t, "just text\n", er.Stdout)
}

func TestHandleDescribe(t *testing.T) {
	svc := &mockService{
		describeS: dataset.Summary{
			Columns: []string{"a", "b"},
			Types:   []string{"int", "float"},
			Rows:    7,
		},
	}
	h := newHandler(svc, &mockSessions{})

	req := httptest.NewRequest(http.MethodGet, "/dataset?session_id=qs", nil)
	rr := httptest.NewRecorder()

	h.HandleDescribe(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp handler.DescribeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "qs", resp.SessionID)
	assert.Equal(t, 7, resp.Rows)
	assert.Equal(t, 2, resp.Columns)
}

func TestHandleEvict(t *testing.T) {
	sessions := &mockSessions{}
	h := newHandler(&mockService{}, sessions)

	req := httptest.NewRequest(http.MethodDelete, "/dataset", nil)
	req.Header.Set(session.HeaderName, "gone")
	rr := httptest.NewRecorder()

	h.HandleEvict(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"gone"}, sessions.evicted)
}
