package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"reportlab/internal/analysis"
	apierrors "reportlab/internal/errors"
	"reportlab/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionHandler exposes the workflow over HTTP: upload a file, inspect
// columns, select analyses, and download the generated report.
type SessionHandler struct {
	service      WorkflowServiceInterface
	store        *session.Store
	maxBytes     int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewSessionHandler creates the workflow handler.
func NewSessionHandler(service WorkflowServiceInterface, store *session.Store, maxBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SessionHandler {
	return &SessionHandler{
		service:      service,
		store:        store,
		maxBytes:     maxBytes,
		logger:       logger.With(slog.String("component", "session_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// NewRouter assembles the API routes. The caller mounts the result
// under /api.
func NewRouter(sessions *SessionHandler, health *HealthHandler) chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", sessions.Upload)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(sessions.SessionCtx)
		r.Get("/", sessions.GetSession)
		r.Delete("/", sessions.DeleteSession)
		r.Get("/columns", sessions.GetColumns)
		r.Post("/analyses", sessions.SelectAnalyses)
		r.Post("/report", sessions.GenerateReport)
	})

	r.Get("/health", health.Health)
	r.Get("/version", health.Version)

	return r
}

// SessionCtx loads the session named in the URL into the request
// context, refreshing its activity timestamp.
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.store.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromCtx(ctx context.Context) *session.Session {
	return ctx.Value(sessionKey).(*session.Session)
}

// Upload handles POST /api/upload: a multipart form with a "file" part
// and an optional "logo" image. Without a "session_id" field a fresh
// session is created; with one, the named session is re-loaded, which
// discards any previous selection.
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.renderTooLargeOrInvalid(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.Validation(w, r, "A \"file\" form field with the upload is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	var logo []byte
	logoName := ""
	if logoFile, logoHeader, err := r.FormFile("logo"); err == nil {
		logo, err = io.ReadAll(logoFile)
		logoFile.Close()
		if err != nil {
			h.errorHandler.HandleError(w, r, fmt.Errorf("read logo: %w", err))
			return
		}
		logoName = logoHeader.Filename
	}

	s, err := h.resolveSession(r.FormValue("session_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "processing upload",
		slog.String("request_id", reqID),
		slog.String("session_id", s.ID),
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(data)))

	result, err := h.service.LoadUpload(r.Context(), s, header.Filename, data, logo, logoName)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"session_id": s.ID,
		"state":      s.State(),
		"dataset":    result,
	})
}

func (h *SessionHandler) resolveSession(id string) (*session.Session, error) {
	if id == "" {
		return h.store.Create(), nil
	}
	return h.store.Get(id)
}

func (h *SessionHandler) renderTooLargeOrInvalid(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	// multipart does not always wrap the limit error in a way errors.As
	// can see, so match the message as well.
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		problem := apierrors.NewProblemDetails(http.StatusRequestEntityTooLarge, apierrors.TypePayloadTooLarge,
			"Upload Too Large", fmt.Sprintf("The upload exceeds the %d byte limit", h.maxBytes), r.URL.Path).
			WithExtension("trace_id", middleware.GetReqID(r.Context()))
		render.Render(w, r, problem)
		return
	}
	h.errorHandler.Validation(w, r, "Request body must be a multipart form", nil)
}

// GetSession handles GET /api/sessions/{id}: current state plus the
// dataset summary once a file is loaded.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFromCtx(r.Context())

	resp := map[string]interface{}{
		"session_id": s.ID,
		"state":      s.State(),
		"created_at": s.CreatedAt,
	}
	if s.State() != session.StateNoFile {
		result, err := h.service.Describe(s)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		resp["dataset"] = result
		resp["plan"] = s.Plan
	}
	render.JSON(w, r, resp)
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFromCtx(r.Context())
	h.store.Delete(s.ID)
	render.NoContent(w, r)
}

// GetColumns handles GET /api/sessions/{id}/columns: the table's
// columns partitioned by the analyses they support.
func (h *SessionHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	s := sessionFromCtx(r.Context())

	sel, err := h.service.Columns(s)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"session_id": s.ID,
		"columns":    sel,
	})
}

type temporalSpecRequest struct {
	Column  string `json:"column" validate:"required"`
	Measure string `json:"measure" validate:"required"`
	Period  string `json:"period" validate:"required,oneof=day week month"`
	Fn      string `json:"fn" validate:"required,oneof=sum mean"`
}

type analysesRequest struct {
	Numeric     []string              `json:"numeric"`
	Categorical []string              `json:"categorical"`
	Temporal    []temporalSpecRequest `json:"temporal" validate:"dive"`
	TopN        int                   `json:"top_n" validate:"omitempty,min=1,max=50"`
}

// SelectAnalyses handles POST /api/sessions/{id}/analyses.
func (h *SessionHandler) SelectAnalyses(w http.ResponseWriter, r *http.Request) {
	s := sessionFromCtx(r.Context())

	var req analysesRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.Validation(w, r, "Invalid request body: "+err.Error(), nil)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.Validation(w, r, "Invalid analysis selection", validationFields(err))
		return
	}
	if len(req.Numeric) == 0 && len(req.Categorical) == 0 && len(req.Temporal) == 0 {
		h.errorHandler.Validation(w, r, "At least one analysis must be selected", nil)
		return
	}

	plan := session.Plan{
		Numeric:     req.Numeric,
		Categorical: req.Categorical,
		TopN:        req.TopN,
	}
	for _, spec := range req.Temporal {
		plan.Temporal = append(plan.Temporal, session.TemporalSpec{
			Column:  spec.Column,
			Measure: spec.Measure,
			Period:  analysis.Period(spec.Period),
			Fn:      analysis.AggFunc(spec.Fn),
		})
	}

	if err := h.service.SelectAnalyses(r.Context(), s, plan); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"session_id": s.ID,
		"state":      s.State(),
		"plan":       s.Plan,
	})
}

// GenerateReport handles POST /api/sessions/{id}/report and responds
// with the PDF as an attachment. The document is fully assembled before
// the first byte is written, so a failure always yields a problem
// document rather than a truncated file.
func (h *SessionHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	s := sessionFromCtx(r.Context())
	reqID := middleware.GetReqID(r.Context())

	var buf bytes.Buffer
	result, err := h.service.GenerateReport(r.Context(), s, &buf)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "serving report",
		slog.String("request_id", reqID),
		slog.String("session_id", s.ID),
		slog.Int("pages", result.Pages),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// validationFields flattens validator errors into field/message pairs.
func validationFields(err error) []map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, map[string]string{
			"field":   fe.Field(),
			"message": fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return fields
}
