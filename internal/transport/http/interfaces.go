package http

import (
	"context"
	"io"

	"reportlab/internal/analysis"
	"reportlab/internal/services"
	"reportlab/internal/session"
)

// WorkflowServiceInterface defines the operations the handlers depend
// on. ReportService implements it; tests may substitute fakes.
type WorkflowServiceInterface interface {
	LoadUpload(ctx context.Context, s *session.Session, filename string, data []byte, logo []byte, logoName string) (*services.UploadResult, error)
	Describe(s *session.Session) (*services.UploadResult, error)
	Columns(s *session.Session) (analysis.Selection, error)
	SelectAnalyses(ctx context.Context, s *session.Session, plan session.Plan) error
	GenerateReport(ctx context.Context, s *session.Session, w io.Writer) (*services.ReportResult, error)
}
