// Package report assembles chart images and statistics tables into a
// single PDF document.
package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	apperrors "reportlab/internal/errors"
)

const (
	pageMargin  = 10.0
	breakMargin = 15.0
	imageWidth  = 170.0
	sectionGap  = 6.0
)

// StatsTable is a statistics block rendered as a bordered table.
type StatsTable struct {
	Header []string
	Rows   [][]string
}

// Section is one report section: a heading, an optional statistics
// table, and the chart images rendered for it.
type Section struct {
	Title      string
	Stats      *StatsTable
	ImagePaths []string
}

// Meta describes the report cover block.
type Meta struct {
	Title        string
	SourceName   string
	LogoPath     string
	GeneratedAt  time.Time
	Rows         int
	Columns      int
	MissingCells int
}

// Assembler lays out report documents. Documents are written in one
// piece: on any failure nothing reaches the output writer, so the
// caller never sees a partial PDF.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates a report assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger.With(slog.String("component", "report_assembler"))}
}

// Assemble builds a landscape PDF with a cover block followed by the
// sections in the order given, and writes the finished document to w.
// Returns the page count. A missing or unreadable chart image aborts
// assembly with ErrReportAssembly before anything is written.
func (a *Assembler) Assemble(w io.Writer, meta Meta, sections []Section) (int, error) {
	if err := a.checkInputs(meta, sections); err != nil {
		return 0, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(meta.Title, true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, breakMargin)
	pdf.AddPage()

	a.writeCover(pdf, meta)
	for _, section := range sections {
		a.writeSection(pdf, section)
	}

	if pdf.Err() {
		return 0, apperrors.ReportAssembly(pdf.Error())
	}

	// Buffer the document so a late failure leaks nothing to w.
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, apperrors.ReportAssembly(err)
	}
	pages := pdf.PageCount()
	if _, err := buf.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write report: %w", err)
	}

	a.logger.Info("assembled report",
		slog.String("title", meta.Title),
		slog.Int("sections", len(sections)),
		slog.Int("pages", pages))
	return pages, nil
}

// checkInputs verifies every referenced image up front.
func (a *Assembler) checkInputs(meta Meta, sections []Section) error {
	if meta.LogoPath != "" {
		if _, err := os.Stat(meta.LogoPath); err != nil {
			return apperrors.ReportAssembly(fmt.Errorf("logo image: %w", err))
		}
	}
	for _, section := range sections {
		for _, path := range section.ImagePaths {
			if _, err := os.Stat(path); err != nil {
				return apperrors.ReportAssembly(fmt.Errorf("chart image for section %q: %w", section.Title, err))
			}
		}
	}
	return nil
}

func (a *Assembler) writeCover(pdf *fpdf.Fpdf, meta Meta) {
	if meta.LogoPath != "" {
		pdf.ImageOptions(meta.LogoPath, pageMargin, 8, 25, 0, false, imageOptions(meta.LogoPath), 0, "")
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 15, meta.Title, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, fmt.Sprintf("Generated: %s", meta.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "", false, 0, "")
	if meta.SourceName != "" {
		pdf.CellFormat(0, 7, fmt.Sprintf("Source file: %s", meta.SourceName), "", 1, "", false, 0, "")
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("Records: %d", meta.Rows), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Columns: %d", meta.Columns), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Missing values: %d", meta.MissingCells), "", 1, "", false, 0, "")
	pdf.Ln(sectionGap)
}

func (a *Assembler) writeSection(pdf *fpdf.Fpdf, section Section) {
	a.ensureSpace(pdf, 30)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 10, section.Title, "", 1, "", false, 0, "")
	pdf.Ln(1)

	if section.Stats != nil {
		a.writeStatsTable(pdf, section.Stats)
		pdf.Ln(3)
	}

	for _, path := range section.ImagePaths {
		a.writeImage(pdf, path)
	}
	pdf.Ln(sectionGap)
}

func (a *Assembler) writeStatsTable(pdf *fpdf.Fpdf, table *StatsTable) {
	if len(table.Header) == 0 {
		return
	}
	pageW, _ := pdf.GetPageSize()
	usable := pageW - 2*pageMargin
	colW := usable / float64(len(table.Header))
	if colW > 45 {
		colW = 45
	}

	a.ensureSpace(pdf, float64(8*(1+len(table.Rows))))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 220, 255)
	for _, h := range table.Header {
		pdf.CellFormat(colW, 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	pdf.SetFillColor(255, 255, 255)
	for _, row := range table.Rows {
		for i := 0; i < len(table.Header); i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colW, 8, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (a *Assembler) writeImage(pdf *fpdf.Fpdf, path string) {
	info := pdf.RegisterImageOptions(path, imageOptions(path))
	if pdf.Err() || info == nil {
		return
	}
	iw, ih := info.Extent()
	if iw == 0 {
		return
	}
	h := ih * imageWidth / iw

	a.ensureSpace(pdf, h+4)

	pageW, _ := pdf.GetPageSize()
	x := (pageW - imageWidth) / 2
	y := pdf.GetY()
	pdf.ImageOptions(path, x, y, imageWidth, h, false, imageOptions(path), 0, "")
	pdf.SetY(y + h + 4)
}

// ensureSpace starts a new page when the next block would not fit.
func (a *Assembler) ensureSpace(pdf *fpdf.Fpdf, need float64) {
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+need > pageH-breakMargin {
		pdf.AddPage()
	}
}

func imageOptions(path string) fpdf.ImageOptions {
	tp := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
	if tp == "JPEG" {
		tp = "JPG"
	}
	return fpdf.ImageOptions{ImageType: tp, ReadDpi: true}
}

// RemoveArtifacts deletes temporary chart images. Called on both the
// success and the failure path of report generation.
func RemoveArtifacts(logger *slog.Logger, paths []string) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove chart artifact",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}
