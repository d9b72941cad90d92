// Package services orchestrates the upload/analyze/report workflow on
// top of the dataset, analysis, chart and report packages.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"reportlab/internal/analysis"
	"reportlab/internal/chart"
	"reportlab/internal/config"
	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
	"reportlab/internal/infrastructure"
	"reportlab/internal/report"
	"reportlab/internal/session"
)

// ReportService drives the single-user workflow: load an upload into a
// session, validate analysis selections against the table, and turn a
// validated plan into a PDF report.
type ReportService struct {
	cfg       config.ReportConfig
	cache     *dataset.Cache
	renderer  *chart.Renderer
	assembler *report.Assembler
	metrics   *infrastructure.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewReportService wires the workflow service.
func NewReportService(
	cfg config.ReportConfig,
	cache *dataset.Cache,
	renderer *chart.Renderer,
	assembler *report.Assembler,
	metrics *infrastructure.Metrics,
	logger *slog.Logger,
) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		cfg:       cfg,
		cache:     cache,
		renderer:  renderer,
		assembler: assembler,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "report_service")),
		now:       time.Now,
	}
}

// ColumnInfo is the per-column summary shown after an upload.
type ColumnInfo struct {
	Name    string             `json:"name"`
	Type    dataset.ColumnType `json:"type"`
	Missing int                `json:"missing"`
}

// UploadResult summarizes a loaded dataset.
type UploadResult struct {
	SourceName   string       `json:"source_name"`
	Rows         int          `json:"rows"`
	ColumnCount  int          `json:"column_count"`
	MissingCells int          `json:"missing_cells"`
	Columns      []ColumnInfo `json:"columns"`
	SampleRows   [][]string   `json:"sample_rows"`
	CacheKey     string       `json:"-"`
}

// LoadUpload parses an uploaded file (through the content-hash cache),
// stores an optional logo image in the scratch directory, and attaches
// the result to the session. Valid in every session state; a re-upload
// replaces the previous dataset.
func (rs *ReportService) LoadUpload(ctx context.Context, s *session.Session, filename string, data []byte, logo []byte, logoName string) (*UploadResult, error) {
	table, key, err := rs.cache.Load(filename, data)
	if err != nil {
		rs.metrics.UploadsTotal.WithLabelValues("error").Inc()
		rs.logger.Warn("upload rejected",
			slog.String("session_id", s.ID),
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	logoPath := ""
	if len(logo) > 0 {
		logoPath, err = rs.writeLogo(logo, logoName)
		if err != nil {
			rs.metrics.UploadsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	s.AttachTable(table, key, filename, logoPath)
	rs.metrics.UploadsTotal.WithLabelValues("success").Inc()

	rs.logger.InfoContext(ctx, "dataset loaded",
		slog.String("session_id", s.ID),
		slog.String("filename", filename),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", table.NumCols()))

	return rs.describeTable(table, filename, key), nil
}

// Describe returns the upload summary for the session's current table.
func (rs *ReportService) Describe(s *session.Session) (*UploadResult, error) {
	if s.State() == session.StateNoFile || s.Table == nil {
		return nil, apperrors.InvalidTransition("inspect dataset", "no file is loaded")
	}
	return rs.describeTable(s.Table, s.SourceName, s.CacheKey), nil
}

func (rs *ReportService) describeTable(table *dataset.Table, filename, key string) *UploadResult {
	cols := make([]ColumnInfo, table.NumCols())
	for i, name := range table.Header {
		missing, _ := table.MissingInColumn(name)
		cols[i] = ColumnInfo{Name: name, Type: table.Types[i], Missing: missing}
	}
	return &UploadResult{
		SourceName:   filename,
		Rows:         table.NumRows(),
		ColumnCount:  table.NumCols(),
		MissingCells: table.MissingCells(),
		Columns:      cols,
		SampleRows:   table.SampleRows(5),
		CacheKey:     key,
	}
}

// Columns partitions the session's table into analyzable column groups.
func (rs *ReportService) Columns(s *session.Session) (analysis.Selection, error) {
	if s.State() == session.StateNoFile || s.Table == nil {
		return analysis.Selection{}, apperrors.InvalidTransition("list columns", "no file is loaded")
	}
	return analysis.Partition(s.Table), nil
}

// SelectAnalyses validates a plan against the session's table and
// stores it. Every named column must exist and match the requested
// analysis type.
func (rs *ReportService) SelectAnalyses(ctx context.Context, s *session.Session, plan session.Plan) error {
	if s.State() == session.StateNoFile || s.Table == nil {
		return apperrors.InvalidTransition("select analyses", "no file is loaded")
	}

	for _, col := range plan.Numeric {
		if err := requireType(s.Table, col, dataset.TypeNumeric); err != nil {
			return err
		}
	}
	for _, col := range plan.Categorical {
		if err := requireType(s.Table, col, dataset.TypeCategorical); err != nil {
			return err
		}
	}
	for _, spec := range plan.Temporal {
		if err := requireType(s.Table, spec.Column, dataset.TypeTemporal); err != nil {
			return err
		}
		if err := requireType(s.Table, spec.Measure, dataset.TypeNumeric); err != nil {
			return err
		}
	}

	if plan.TopN <= 0 {
		plan.TopN = rs.cfg.TopN
	}
	if err := s.SetPlan(plan); err != nil {
		return err
	}

	rs.logger.InfoContext(ctx, "analyses selected",
		slog.String("session_id", s.ID),
		slog.Int("numeric", len(plan.Numeric)),
		slog.Int("categorical", len(plan.Categorical)),
		slog.Int("temporal", len(plan.Temporal)))
	return nil
}

func requireType(t *dataset.Table, col string, want dataset.ColumnType) error {
	got, err := t.ColumnType(col)
	if err != nil {
		return err
	}
	if got != want {
		return apperrors.ColumnType(col, string(want))
	}
	return nil
}

// ReportResult summarizes a generated document.
type ReportResult struct {
	Pages    int `json:"pages"`
	Sections int `json:"sections"`
}

// GenerateReport renders every chart in the session's plan, assembles
// the PDF into w, and advances the session. Chart images are written to
// the scratch directory and removed before returning, on success and
// failure alike. Nothing is written to w unless the whole document
// assembled.
func (rs *ReportService) GenerateReport(ctx context.Context, s *session.Session, w io.Writer) (*ReportResult, error) {
	plan, err := s.BeginReport()
	if err != nil {
		return nil, err
	}

	start := rs.now()
	var artifacts []string
	defer func() { report.RemoveArtifacts(rs.logger, artifacts) }()

	var sections []report.Section
	for _, col := range plan.Numeric {
		section, paths, err := rs.numericSection(s.Table, col)
		artifacts = append(artifacts, paths...)
		if err != nil {
			rs.metrics.ReportsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		sections = append(sections, section)
	}
	for _, col := range plan.Categorical {
		section, paths, err := rs.categoricalSection(s.Table, col, plan.TopN)
		artifacts = append(artifacts, paths...)
		if err != nil {
			rs.metrics.ReportsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		sections = append(sections, section)
	}
	for _, spec := range plan.Temporal {
		section, paths, err := rs.temporalSection(s.Table, spec)
		artifacts = append(artifacts, paths...)
		if err != nil {
			rs.metrics.ReportsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		sections = append(sections, section)
	}

	meta := report.Meta{
		Title:        rs.cfg.Title,
		SourceName:   s.SourceName,
		LogoPath:     s.LogoPath,
		GeneratedAt:  rs.now(),
		Rows:         s.Table.NumRows(),
		Columns:      s.Table.NumCols(),
		MissingCells: s.Table.MissingCells(),
	}
	pages, err := rs.assembler.Assemble(w, meta, sections)
	if err != nil {
		rs.metrics.ReportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.MarkReportGenerated()
	rs.metrics.ReportsTotal.WithLabelValues("success").Inc()
	rs.metrics.ReportDuration.Observe(rs.now().Sub(start).Seconds())

	rs.logger.InfoContext(ctx, "report generated",
		slog.String("session_id", s.ID),
		slog.Int("sections", len(sections)),
		slog.Int("pages", pages),
		slog.Duration("elapsed", rs.now().Sub(start)))
	return &ReportResult{Pages: pages, Sections: len(sections)}, nil
}

func (rs *ReportService) numericSection(t *dataset.Table, col string) (report.Section, []string, error) {
	var paths []string

	d, err := analysis.Describe(t, col)
	if err != nil {
		return report.Section{}, paths, err
	}

	hist, err := rs.renderer.Histogram(t, col)
	if err != nil {
		return report.Section{}, paths, err
	}
	paths = append(paths, hist)
	rs.metrics.ChartsRendered.Inc()

	box, err := rs.renderer.Boxplot(t, col)
	if err != nil {
		return report.Section{}, paths, err
	}
	paths = append(paths, box)
	rs.metrics.ChartsRendered.Inc()

	section := report.Section{
		Title: fmt.Sprintf("Numeric: %s", col),
		Stats: &report.StatsTable{
			Header: []string{"count", "missing", "mean", "std", "min", "25%", "50%", "75%", "max"},
			Rows: [][]string{{
				strconv.Itoa(d.Count),
				strconv.Itoa(d.Missing),
				formatStat(d.Mean),
				formatStat(d.Std),
				formatStat(d.Min),
				formatStat(d.Q1),
				formatStat(d.Median),
				formatStat(d.Q3),
				formatStat(d.Max),
			}},
		},
		ImagePaths: paths,
	}
	return section, paths, nil
}

func (rs *ReportService) categoricalSection(t *dataset.Table, col string, topN int) (report.Section, []string, error) {
	var paths []string

	freqs, distinct, err := analysis.Frequencies(t, col, topN)
	if err != nil {
		return report.Section{}, paths, err
	}

	bars, err := rs.renderer.CategoryBars(t, col, topN)
	if err != nil {
		return report.Section{}, paths, err
	}
	paths = append(paths, bars)
	rs.metrics.ChartsRendered.Inc()

	rows := make([][]string, len(freqs))
	for i, f := range freqs {
		rows[i] = []string{f.Value, strconv.Itoa(f.Count)}
	}

	title := fmt.Sprintf("Categorical: %s", col)
	if distinct > len(freqs) {
		title = fmt.Sprintf("Categorical: %s (top %d of %d values)", col, len(freqs), distinct)
	}
	section := report.Section{
		Title:      title,
		Stats:      &report.StatsTable{Header: []string{"value", "count"}, Rows: rows},
		ImagePaths: paths,
	}
	return section, paths, nil
}

func (rs *ReportService) temporalSection(t *dataset.Table, spec session.TemporalSpec) (report.Section, []string, error) {
	var paths []string

	buckets, err := analysis.AggregateSeries(t, spec.Column, spec.Measure, spec.Period, spec.Fn)
	if err != nil {
		return report.Section{}, paths, err
	}

	img, err := rs.renderer.TimeSeries(t, spec.Column, spec.Measure, spec.Period, spec.Fn)
	if err != nil {
		return report.Section{}, paths, err
	}
	paths = append(paths, img)
	rs.metrics.ChartsRendered.Inc()

	layout := "2006-01-02"
	if spec.Period == analysis.PeriodMonth {
		layout = "2006-01"
	}
	rows := make([][]string, len(buckets))
	for i, b := range buckets {
		rows[i] = []string{b.Start.Format(layout), formatStat(b.Value), strconv.Itoa(b.N)}
	}

	section := report.Section{
		Title: fmt.Sprintf("Time series: %s of %s by %s (%s)", spec.Fn, spec.Measure, spec.Column, spec.Period),
		Stats: &report.StatsTable{
			Header: []string{string(spec.Period), fmt.Sprintf("%s(%s)", spec.Fn, spec.Measure), "rows"},
			Rows:   rows,
		},
		ImagePaths: paths,
	}
	return section, paths, nil
}

// writeLogo persists an uploaded logo image next to the chart scratch
// files so the assembler can embed it.
func (rs *ReportService) writeLogo(data []byte, name string) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".png"
	}
	f, err := os.CreateTemp(rs.cfg.ScratchDir, "logo-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create logo file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write logo file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close logo file: %w", err)
	}
	return f.Name(), nil
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
