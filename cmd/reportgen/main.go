// Command reportgen generates a PDF report from a CSV or Excel file
// without starting the web server. With no column flags it analyzes
// every numeric and categorical column.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reportlab/internal/analysis"
	"reportlab/internal/chart"
	"reportlab/internal/config"
	"reportlab/internal/dataset"
	"reportlab/internal/infrastructure"
	"reportlab/internal/report"
	"reportlab/internal/services"
	"reportlab/internal/session"
)

func main() {
	var (
		input       = flag.String("input", "", "input CSV/Excel file (required)")
		output      = flag.String("output", "report.pdf", "output PDF path")
		logoPath    = flag.String("logo", "", "optional logo image for the cover")
		numeric     = flag.String("numeric", "", "comma-separated numeric columns (default: all)")
		categorical = flag.String("categorical", "", "comma-separated categorical columns (default: all)")
		timeColumn  = flag.String("time-column", "", "temporal column for a time-series section")
		measure     = flag.String("measure", "", "numeric column to aggregate over -time-column")
		period      = flag.String("period", "month", "time-series bucket: day, week or month")
		fn          = flag.String("fn", "sum", "time-series aggregation: sum or mean")
		topN        = flag.Int("top", 0, "top categorical values per chart (default from config)")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*input, *output, *logoPath, *numeric, *categorical, *timeColumn, *measure, *period, *fn, *topN); err != nil {
		fmt.Fprintln(os.Stderr, "reportgen:", err)
		os.Exit(1)
	}
}

func run(input, output, logoPath, numeric, categorical, timeColumn, measure, period, fn string, topN int) error {
	cfg := config.Default()
	if topN > 0 {
		cfg.Report.TopN = topN
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	var logo []byte
	if logoPath != "" {
		if logo, err = os.ReadFile(logoPath); err != nil {
			return err
		}
	}

	svc := services.NewReportService(
		cfg.Report,
		dataset.NewCache(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		chart.NewRenderer(cfg.Report.ScratchDir, cfg.Report.ChartWidth, cfg.Report.ChartHeight, logger),
		report.NewAssembler(logger),
		infrastructure.NewMetrics(),
		logger,
	)

	store := session.NewStore(cfg.Session.TTL, logger)
	s := store.Create()
	defer store.Delete(s.ID)

	ctx := context.Background()
	if _, err := svc.LoadUpload(ctx, s, input, data, logo, logoPath); err != nil {
		return err
	}

	plan, err := buildPlan(svc, s, numeric, categorical, timeColumn, measure, period, fn)
	if err != nil {
		return err
	}
	if err := svc.SelectAnalyses(ctx, s, plan); err != nil {
		return err
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	result, err := svc.GenerateReport(ctx, s, out)
	if err != nil {
		out.Close()
		os.Remove(output)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d sections, %d pages\n", output, result.Sections, result.Pages)
	return nil
}

func buildPlan(svc *services.ReportService, s *session.Session, numeric, categorical, timeColumn, measure, period, fn string) (session.Plan, error) {
	plan := session.Plan{
		Numeric:     splitList(numeric),
		Categorical: splitList(categorical),
	}

	// Without explicit column flags, analyze everything analyzable.
	if numeric == "" && categorical == "" {
		sel, err := svc.Columns(s)
		if err != nil {
			return session.Plan{}, err
		}
		plan.Numeric = sel.Numeric
		plan.Categorical = sel.Categorical
	}

	if timeColumn != "" {
		if measure == "" {
			return session.Plan{}, fmt.Errorf("-time-column requires -measure")
		}
		switch analysis.Period(period) {
		case analysis.PeriodDay, analysis.PeriodWeek, analysis.PeriodMonth:
		default:
			return session.Plan{}, fmt.Errorf("invalid -period %q", period)
		}
		switch analysis.AggFunc(fn) {
		case analysis.AggSum, analysis.AggMean:
		default:
			return session.Plan{}, fmt.Errorf("invalid -fn %q", fn)
		}
		plan.Temporal = []session.TemporalSpec{{
			Column:  timeColumn,
			Measure: measure,
			Period:  analysis.Period(period),
			Fn:      analysis.AggFunc(fn),
		}}
	}

	if plan.Empty() {
		return session.Plan{}, fmt.Errorf("nothing to analyze in %s", s.SourceName)
	}
	return plan, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
