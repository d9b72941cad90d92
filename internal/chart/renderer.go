// Package chart renders statistical chart images for report sections.
// All charts are rasterized to PNG files with a headless backend; no
// display is required and rendering is safe across worker goroutines.
package chart

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	chart "github.com/wcharczuk/go-chart/v2"

	"reportlab/internal/analysis"
	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
)

// Renderer produces chart images in a scratch directory. Each call
// writes exactly one uniquely named temporary PNG and returns its path;
// ownership of the file passes to the caller.
type Renderer struct {
	dir    string
	width  int
	height int
	logger *slog.Logger
}

// NewRenderer creates a chart renderer writing PNGs of the given size
// into dir.
func NewRenderer(dir string, width, height int, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		dir:    dir,
		width:  width,
		height: height,
		logger: logger.With(slog.String("component", "chart_renderer")),
	}
}

func (r *Renderer) tempPath() string {
	return filepath.Join(r.dir, fmt.Sprintf("chart-%s.png", uuid.New().String()))
}

// writeChart writes the rendered chart to a fresh temp file, removing
// the file again if rendering fails partway.
func (r *Renderer) writeChart(render func(f *os.File) error) (string, error) {
	path := r.tempPath()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close chart file: %w", err)
	}
	return path, nil
}

// Histogram renders the value distribution of a numeric column.
func (r *Renderer) Histogram(t *dataset.Table, column string) (string, error) {
	vals, err := t.NumericValues(column)
	if err != nil {
		return "", err
	}
	if len(vals) == 0 {
		return "", apperrors.NoDataToPlot(column)
	}

	bins := binValues(vals)
	bars := make([]chart.Value, len(bins))
	maxCount := 0.0
	for i, b := range bins {
		bars[i] = chart.Value{
			Value: float64(b.count),
			Label: formatTick(b.mid),
		}
		if float64(b.count) > maxCount {
			maxCount = float64(b.count)
		}
	}

	bc := chart.BarChart{
		Title:      fmt.Sprintf("Distribution of %s", column),
		Width:      r.width,
		Height:     r.height,
		BarWidth:   barWidth(r.width, len(bars)),
		BarSpacing: 8,
		Background: chart.Style{Padding: chart.Box{Top: 40, Bottom: 20}},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxCount*1.1 + 1},
		},
		Bars: bars,
	}

	path, err := r.writeChart(func(f *os.File) error {
		return bc.Render(chart.PNG, f)
	})
	if err != nil {
		return "", fmt.Errorf("render histogram for %s: %w", column, err)
	}
	r.logger.Debug("rendered histogram",
		slog.String("column", column),
		slog.Int("bins", len(bins)),
		slog.String("path", path))
	return path, nil
}

// TimeSeries renders a numeric measure aggregated over a temporal
// column by the given period and function.
func (r *Renderer) TimeSeries(t *dataset.Table, timeCol, measureCol string, period analysis.Period, fn analysis.AggFunc) (string, error) {
	buckets, err := analysis.AggregateSeries(t, timeCol, measureCol, period, fn)
	if err != nil {
		return "", err
	}

	// The rasterizer needs at least two x values; a single bucket is
	// padded with a flat continuation one period later.
	if len(buckets) == 1 {
		buckets = append(buckets, analysis.TimeBucket{
			Start: analysis.NextBucket(buckets[0].Start, period),
			Value: buckets[0].Value,
		})
	}

	times := make([]time.Time, len(buckets))
	values := make([]float64, len(buckets))
	minV, maxV := math.Inf(1), math.Inf(-1)
	for i, b := range buckets {
		times[i] = b.Start
		values[i] = b.Value
		minV = math.Min(minV, b.Value)
		maxV = math.Max(maxV, b.Value)
	}
	pad := (maxV - minV) * 0.1
	if pad == 0 {
		pad = math.Abs(maxV)*0.1 + 1
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("%s of %s by %s (%s)", fn, measureCol, period, timeCol),
		Width:  r.width,
		Height: r.height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(periodFormat(period)),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: minV - pad, Max: maxV + pad},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    measureCol,
				XValues: times,
				YValues: values,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2.0,
					DotColor:    chart.ColorBlue,
					DotWidth:    3.0,
				},
			},
		},
	}

	path, err := r.writeChart(func(f *os.File) error {
		return ch.Render(chart.PNG, f)
	})
	if err != nil {
		return "", fmt.Errorf("render time series for %s/%s: %w", timeCol, measureCol, err)
	}
	r.logger.Debug("rendered time series",
		slog.String("time_column", timeCol),
		slog.String("measure", measureCol),
		slog.Int("buckets", len(buckets)),
		slog.String("path", path))
	return path, nil
}

func periodFormat(period analysis.Period) string {
	if period == analysis.PeriodMonth {
		return "2006-01"
	}
	return "2006-01-02"
}

// barWidth sizes histogram bars so they always fit the canvas.
func barWidth(canvasWidth, bars int) int {
	if bars == 0 {
		return 1
	}
	w := (canvasWidth - 100) / (bars * 2)
	if w < 4 {
		w = 4
	}
	if w > 60 {
		w = 60
	}
	return w
}

// bin is one histogram bucket.
type bin struct {
	mid   float64
	count int
}

// binValues buckets values with the Sturges rule, capped at 16 bins.
func binValues(vals []float64) []bin {
	minV, maxV := vals[0], vals[0]
	for _, v := range vals {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	n := int(math.Ceil(math.Log2(float64(len(vals))))) + 1
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	if minV == maxV {
		return []bin{{mid: minV, count: len(vals)}}
	}

	width := (maxV - minV) / float64(n)
	bins := make([]bin, n)
	for i := range bins {
		bins[i].mid = minV + (float64(i)+0.5)*width
	}
	for _, v := range vals {
		idx := int((v - minV) / width)
		if idx >= n {
			idx = n - 1
		}
		bins[idx].count++
	}
	return bins
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
