package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportlab/internal/chart"
	"reportlab/internal/config"
	"reportlab/internal/dataset"
	apierrors "reportlab/internal/errors"
	"reportlab/internal/infrastructure"
	"reportlab/internal/report"
	"reportlab/internal/services"
	"reportlab/internal/session"
)

const sampleCSV = `age,city,signup_date,revenue
34,Berlin,2024-01-03,120.5
29,Munich,2024-01-10,80.0
41,Berlin,2024-02-02,200.0
52,Berlin,2024-03-01,150.25
`

type testServer struct {
	router *chi.Mux
	store  *session.Store
}

func newTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	scratch := t.TempDir()
	logger := slog.Default()
	cfg := config.ReportConfig{
		Title:       "Data Analysis Report",
		TopN:        20,
		ChartWidth:  640,
		ChartHeight: 360,
		ScratchDir:  scratch,
	}

	store := session.NewStore(time.Hour, logger)
	cache := dataset.NewCache(time.Hour, 8)
	svc := services.NewReportService(
		cfg,
		cache,
		chart.NewRenderer(scratch, cfg.ChartWidth, cfg.ChartHeight, logger),
		report.NewAssembler(logger),
		infrastructure.NewMetrics(),
		logger,
	)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Mount("/api", NewRouter(
		NewSessionHandler(svc, store, maxBytes, logger, errorHandler),
		NewHealthHandler(store, cache, "test", logger),
	))

	return &testServer{router: r, store: store}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename, content, sessionID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	if sessionID != "" {
		require.NoError(t, mw.WriteField("session_id", sessionID))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func uploadSample(t *testing.T, ts *testServer) string {
	t.Helper()
	rec := ts.do(t, multipartUpload(t, "sales.csv", sampleCSV, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func selectAnalyses(t *testing.T, ts *testServer, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/analyses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	rec := ts.do(t, multipartUpload(t, "sales.csv", sampleCSV, ""))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		State     string `json:"state"`
		Dataset   struct {
			Rows        int `json:"rows"`
			ColumnCount int `json:"column_count"`
		} `json:"dataset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "loaded", resp.State)
	assert.Equal(t, 4, resp.Dataset.Rows)
	assert.Equal(t, 4, resp.Dataset.ColumnCount)
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	rec := ts.do(t, multipartUpload(t, "notes.txt", "plain text", ""))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeUnsupportedFile, problem["type"])
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t, 64)
	rec := ts.do(t, multipartUpload(t, "sales.csv", sampleCSV, ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_MissingFile(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("session_id", ""))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_ReuploadResetsSession(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := selectAnalyses(t, ts, id, `{"numeric":["age"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, multipartUpload(t, "other.csv", "x,y\n1,2\n", id))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		State     string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID, "upload with session_id must reuse the session")
	assert.Equal(t, "loaded", resp.State, "re-upload must discard the previous selection")
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State   string          `json:"state"`
		Dataset json.RawMessage `json:"dataset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "loaded", resp.State)
	assert.NotEmpty(t, resp.Dataset)
}

func TestGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestGetColumns(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/columns", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Columns struct {
			Numeric     []string `json:"numeric"`
			Categorical []string `json:"categorical"`
			Temporal    []string `json:"temporal"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"age", "revenue"}, resp.Columns.Numeric)
	assert.Equal(t, []string{"city"}, resp.Columns.Categorical)
	assert.Equal(t, []string{"signup_date"}, resp.Columns.Temporal)
}

func TestSelectAnalyses(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "valid selection",
			body:     `{"numeric":["age"],"categorical":["city"],"temporal":[{"column":"signup_date","measure":"revenue","period":"month","fn":"sum"}]}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "invalid period",
			body:     `{"temporal":[{"column":"signup_date","measure":"revenue","period":"hourly","fn":"sum"}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid aggregation",
			body:     `{"temporal":[{"column":"signup_date","measure":"revenue","period":"day","fn":"median"}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "top_n out of range",
			body:     `{"categorical":["city"],"top_n":500}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty selection",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown column",
			body:     `{"numeric":["salary"]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"numeric":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := selectAnalyses(t, ts, id, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestGenerateReport(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := selectAnalyses(t, ts, id, `{"numeric":["revenue"],"categorical":["city"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	// State is now report_generated.
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	var resp struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "report_generated", resp.State)
}

func TestGenerateReport_WithoutSelection(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/report", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	id := uploadSample(t, ts)

	rec := ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var version struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, "test", version.Version)
}
