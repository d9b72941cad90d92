package chart

import (
	"fmt"
	"log/slog"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"reportlab/internal/analysis"
	apperrors "reportlab/internal/errors"
	"reportlab/internal/dataset"
)

var (
	boxFill    = drawing.Color{R: 0x93, G: 0xc5, B: 0xfd, A: 255}
	boxStroke  = drawing.Color{R: 0x1a, G: 0x3a, B: 0x8f, A: 255}
	barFill    = drawing.Color{R: 0x25, G: 0x63, B: 0xeb, A: 255}
	axisStroke = drawing.Color{R: 0x66, G: 0x66, B: 0x66, A: 255}
)

// Boxplot renders a horizontal box-and-whisker plot for a numeric
// column. go-chart has no boxplot type, so the five-number summary is
// drawn with the raw raster renderer.
func (r *Renderer) Boxplot(t *dataset.Table, column string) (string, error) {
	d, err := analysis.Describe(t, column)
	if err != nil {
		return "", err
	}

	path, err := r.writeChart(func(f *os.File) error {
		return r.drawBoxplot(f, column, d)
	})
	if err != nil {
		return "", fmt.Errorf("render boxplot for %s: %w", column, err)
	}
	r.logger.Debug("rendered boxplot",
		slog.String("column", column),
		slog.String("path", path))
	return path, nil
}

func (r *Renderer) drawBoxplot(f *os.File, column string, d analysis.Descriptive) error {
	rend, err := chart.PNG(r.width, r.height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	rend.SetFont(font)

	const (
		left   = 50
		right  = 30
		top    = 50
		bottom = 50
	)
	plotW := float64(r.width - left - right)
	span := d.Max - d.Min
	if span == 0 {
		span = 1
	}
	x := func(v float64) int {
		return left + int((v-d.Min)/span*plotW)
	}

	centerY := top + (r.height-top-bottom)/2
	boxHalf := (r.height - top - bottom) / 4

	// Title.
	rend.SetFontColor(drawing.ColorBlack)
	rend.SetFontSize(14)
	rend.Text(fmt.Sprintf("Boxplot of %s", column), left, 28)

	// Whiskers.
	rend.SetStrokeColor(boxStroke)
	rend.SetStrokeWidth(2)
	line(rend, x(d.Min), centerY, x(d.Q1), centerY)
	line(rend, x(d.Q3), centerY, x(d.Max), centerY)
	line(rend, x(d.Min), centerY-boxHalf/2, x(d.Min), centerY+boxHalf/2)
	line(rend, x(d.Max), centerY-boxHalf/2, x(d.Max), centerY+boxHalf/2)

	// Interquartile box.
	rend.SetFillColor(boxFill)
	rend.MoveTo(x(d.Q1), centerY-boxHalf)
	rend.LineTo(x(d.Q3), centerY-boxHalf)
	rend.LineTo(x(d.Q3), centerY+boxHalf)
	rend.LineTo(x(d.Q1), centerY+boxHalf)
	rend.Close()
	rend.FillStroke()

	// Median.
	rend.SetStrokeWidth(3)
	line(rend, x(d.Median), centerY-boxHalf, x(d.Median), centerY+boxHalf)

	// Value labels under the plot.
	rend.SetFontSize(10)
	labelY := centerY + boxHalf + 22
	for _, v := range []float64{d.Min, d.Q1, d.Median, d.Q3, d.Max} {
		label := formatTick(v)
		box := rend.MeasureText(label)
		rend.Text(label, x(v)-box.Width()/2, labelY)
	}

	return rend.Save(f)
}

// CategoryBars renders a horizontal bar chart of the topN most frequent
// values of a categorical column. Values beyond topN are dropped from
// the chart only, never from the table.
func (r *Renderer) CategoryBars(t *dataset.Table, column string, topN int) (string, error) {
	freqs, distinct, err := analysis.Frequencies(t, column, topN)
	if err != nil {
		return "", err
	}

	path, err := r.writeChart(func(f *os.File) error {
		return r.drawCategoryBars(f, column, freqs, distinct)
	})
	if err != nil {
		return "", fmt.Errorf("render category bars for %s: %w", column, err)
	}
	r.logger.Debug("rendered category bars",
		slog.String("column", column),
		slog.Int("bars", len(freqs)),
		slog.Int("distinct", distinct),
		slog.String("path", path))
	return path, nil
}

func (r *Renderer) drawCategoryBars(f *os.File, column string, freqs []analysis.Frequency, distinct int) error {
	if len(freqs) == 0 {
		return apperrors.NoDataToPlot(column)
	}

	rend, err := chart.PNG(r.width, r.height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	rend.SetFont(font)

	const (
		labelW = 190
		right  = 70
		top    = 50
		bottom = 20
	)
	title := fmt.Sprintf("Top %d values of %s", len(freqs), column)
	if distinct > len(freqs) {
		title = fmt.Sprintf("Top %d of %d values of %s", len(freqs), distinct, column)
	}
	rend.SetFontColor(drawing.ColorBlack)
	rend.SetFontSize(14)
	rend.Text(title, 10, 28)

	maxCount := freqs[0].Count
	for _, fr := range freqs {
		if fr.Count > maxCount {
			maxCount = fr.Count
		}
	}

	plotW := float64(r.width - labelW - right)
	rowH := float64(r.height-top-bottom) / float64(len(freqs))
	barH := rowH * 0.7

	// Baseline between labels and bars.
	rend.SetStrokeColor(axisStroke)
	rend.SetStrokeWidth(1)
	line(rend, labelW, top, labelW, r.height-bottom)

	rend.SetFontSize(10)
	for i, fr := range freqs {
		rowTop := float64(top) + float64(i)*rowH
		barTop := int(rowTop + (rowH-barH)/2)
		barLen := int(float64(fr.Count) / float64(maxCount) * plotW)
		if barLen < 1 {
			barLen = 1
		}

		rend.SetFillColor(barFill)
		rend.SetStrokeColor(boxStroke)
		rend.SetStrokeWidth(1)
		rend.MoveTo(labelW, barTop)
		rend.LineTo(labelW+barLen, barTop)
		rend.LineTo(labelW+barLen, barTop+int(barH))
		rend.LineTo(labelW, barTop+int(barH))
		rend.Close()
		rend.FillStroke()

		textY := int(rowTop + rowH/2 + 4)
		rend.SetFontColor(drawing.ColorBlack)
		rend.Text(truncateLabel(fr.Value, 24), 8, textY)
		rend.Text(fmt.Sprintf("%d", fr.Count), labelW+barLen+6, textY)
	}

	return rend.Save(f)
}

func line(rend chart.Renderer, x0, y0, x1, y1 int) {
	rend.MoveTo(x0, y0)
	rend.LineTo(x1, y1)
	rend.Stroke()
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
