package analysis

import (
	"math"
	"sort"
	"time"

	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
)

// Descriptive holds the summary statistics for one numeric column.
type Descriptive struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Q1      float64 `json:"q1"`
	Median  float64 `json:"median"`
	Q3      float64 `json:"q3"`
	Max     float64 `json:"max"`
}

// Describe computes descriptive statistics for a numeric column.
// Returns ErrNoDataToPlot when the column has zero non-missing values.
func Describe(t *dataset.Table, column string) (Descriptive, error) {
	vals, err := t.NumericValues(column)
	if err != nil {
		return Descriptive{}, err
	}
	if len(vals) == 0 {
		return Descriptive{}, apperrors.NoDataToPlot(column)
	}
	missing, err := t.MissingInColumn(column)
	if err != nil {
		return Descriptive{}, err
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	d := Descriptive{
		Column:  column,
		Count:   len(vals),
		Missing: missing,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Mean:    mean(vals),
		Q1:      quantile(sorted, 0.25),
		Median:  quantile(sorted, 0.5),
		Q3:      quantile(sorted, 0.75),
	}
	d.Std = sampleStd(vals, d.Mean)
	return d, nil
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStd is the n-1 standard deviation; zero for a single value.
func sampleStd(vals []float64, mu float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// quantile computes the q-th quantile of sorted values with linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Frequency is one categorical value with its occurrence count.
type Frequency struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Frequencies returns the topN most frequent values of a categorical
// column, ordered by descending count with ties broken by first
// occurrence in the column, plus the total number of distinct values.
// Truncation affects the returned list only, never the table.
func Frequencies(t *dataset.Table, column string, topN int) ([]Frequency, int, error) {
	vals, err := t.StringValues(column)
	if err != nil {
		return nil, 0, err
	}
	if len(vals) == 0 {
		return nil, 0, apperrors.NoDataToPlot(column)
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, v := range vals {
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
		}
		counts[v]++
	}

	freqs := make([]Frequency, 0, len(counts))
	for v, n := range counts {
		freqs = append(freqs, Frequency{Value: v, Count: n})
	}
	sort.SliceStable(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return firstSeen[freqs[i].Value] < firstSeen[freqs[j].Value]
	})

	distinct := len(freqs)
	if topN > 0 && len(freqs) > topN {
		freqs = freqs[:topN]
	}
	return freqs, distinct, nil
}

// Period is the bucket size for temporal aggregation.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// AggFunc is the deterministic aggregation applied per bucket.
type AggFunc string

const (
	AggSum  AggFunc = "sum"
	AggMean AggFunc = "mean"
)

// TimeBucket is one aggregated point of a time series.
type TimeBucket struct {
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
	N     int       `json:"n"`
}

// AggregateSeries buckets (timestamp, measure) pairs of a temporal and
// a numeric column by the given period and reduces each bucket with fn.
// Buckets are returned in chronological order. Returns ErrNoDataToPlot
// when no row has both values present.
func AggregateSeries(t *dataset.Table, timeCol, measureCol string, period Period, fn AggFunc) ([]TimeBucket, error) {
	pairs, err := t.TimeNumericPairs(timeCol, measureCol)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, apperrors.NoDataToPlot(timeCol)
	}

	sums := make(map[time.Time]float64)
	ns := make(map[time.Time]int)
	for _, p := range pairs {
		b := bucketStart(p.At, period)
		sums[b] += p.Value
		ns[b]++
	}

	buckets := make([]TimeBucket, 0, len(sums))
	for start, sum := range sums {
		v := sum
		if fn == AggMean {
			v = sum / float64(ns[start])
		}
		buckets = append(buckets, TimeBucket{Start: start, Value: v, N: ns[start]})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })
	return buckets, nil
}

// bucketStart truncates a timestamp to its period start: midnight for
// day, Monday for week, the first of the month for month.
func bucketStart(at time.Time, period Period) time.Time {
	y, m, d := at.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, at.Location())
	switch period {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, at.Location())
	default:
		return day
	}
}

// NextBucket returns the start of the bucket that follows the given one.
func NextBucket(start time.Time, period Period) time.Time {
	switch period {
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
