package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler provides centralized error handling at the HTTP boundary.
// Every pipeline error is recovered here and rendered as an RFC 7807
// problem document; none are fatal to the process.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem maps domain sentinel errors onto problem documents.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	instance := r.URL.Path

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", instance)

	case errors.Is(err, ErrUnsupportedFormat):
		return NewProblemDetails(http.StatusUnsupportedMediaType, TypeUnsupportedFile,
			"Unsupported File Format", err.Error(), instance)

	case errors.Is(err, ErrParse):
		return NewProblemDetails(http.StatusBadRequest, TypeParseFailure,
			"File Could Not Be Parsed", err.Error(), instance)

	case errors.Is(err, ErrEmptyData):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeEmptyData,
			"Empty Data File", err.Error(), instance)

	case errors.Is(err, ErrNoDataToPlot):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeNoDataToPlot,
			"No Data To Plot", err.Error(), instance)

	case errors.Is(err, ErrReportAssembly):
		return NewProblemDetails(http.StatusInternalServerError, TypeReportAssembly,
			"Report Assembly Failed", err.Error(), instance)

	case errors.Is(err, ErrInvalidTransition):
		return NewProblemDetails(http.StatusConflict, TypeSessionState,
			"Invalid Session State", err.Error(), instance)

	case errors.Is(err, ErrSessionNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeSessionNotFound,
			"Session Not Found", err.Error(), instance)

	case errors.Is(err, ErrUnknownColumn) || errors.Is(err, ErrColumnType):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Invalid Analysis Selection", err.Error(), instance)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error", "An unexpected error occurred while processing your request", instance)
	}
}

// Validation renders a 400 problem document with per-field details.
func (h *ErrorHandler) Validation(w http.ResponseWriter, r *http.Request, detail string, fields interface{}) {
	problem := NewProblemDetails(http.StatusBadRequest, TypeValidation,
		"Validation Failed", detail, r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	if fields != nil {
		problem.WithExtension("errors", fields)
	}
	render.Render(w, r, problem)
}

// HandlePanic recovers from panics and returns an RFC 7807 error.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path).
		WithExtension("trace_id", reqID)

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 problem document.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 problem document.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal,
		"Method Not Allowed", "Method "+r.Method+" is not allowed for this endpoint", r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
