package dataset

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"integers", []string{"1", "2", "3"}, TypeNumeric},
		{"floats with missing", []string{"1.5", "", "2.75", "NA"}, TypeNumeric},
		{"scientific notation", []string{"1e3", "-2.5e-2"}, TypeNumeric},
		{"iso dates", []string{"2024-01-01", "2024-02-29"}, TypeTemporal},
		{"datetimes", []string{"2024-01-01 10:30:00"}, TypeTemporal},
		{"slash dates", []string{"2024/01/01", "2024/06/30"}, TypeTemporal},
		{"strings", []string{"Berlin", "Paris"}, TypeCategorical},
		{"mixed numeric and text", []string{"1", "two"}, TypeCategorical},
		{"mixed date and text", []string{"2024-01-01", "soon"}, TypeCategorical},
		{"all missing", []string{"", "NA", "null", "NaN"}, TypeOther},
		{"empty column", nil, TypeOther},
		{"years are numeric", []string{"2020", "2021"}, TypeNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.values))
		})
	}
}

func TestNumericValuesSkipsMissing(t *testing.T) {
	table, err := Load("t.csv", strings.NewReader("v\n1\n\n2.5\nNA\n-3\n"))
	require.NoError(t, err)

	vals, err := table.NumericValues("v")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, vals)
}

func TestStringValuesPreservesOrder(t *testing.T) {
	table, err := Load("t.csv", strings.NewReader("c\nb\n\na\nb\n"))
	require.NoError(t, err)

	vals, err := table.StringValues("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "b"}, vals)
}

func TestTimeNumericPairs(t *testing.T) {
	csv := "day,rev\n2024-01-01,10\n2024-01-02,\n,5\n2024-01-03,30\n"
	table, err := Load("t.csv", strings.NewReader(csv))
	require.NoError(t, err)

	pairs, err := table.TimeNumericPairs("day", "rev")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), pairs[0].At)
	assert.Equal(t, 10.0, pairs[0].Value)
	assert.Equal(t, 30.0, pairs[1].Value)
}

func TestUnknownColumn(t *testing.T) {
	table, err := Load("t.csv", strings.NewReader("a\n1\n"))
	require.NoError(t, err)

	_, err = table.RawColumn("ghost")
	assert.Error(t, err)
	_, err = table.ColumnType("ghost")
	assert.Error(t, err)
}

func TestSampleRowsCopies(t *testing.T) {
	table, err := Load("t.csv", strings.NewReader("a,b\n1,x\n2,y\n3,z\n"))
	require.NoError(t, err)

	sample := table.SampleRows(2)
	require.Len(t, sample, 2)
	sample[0][0] = "mutated"
	assert.Equal(t, "1", table.Records[0][0])

	assert.Len(t, table.SampleRows(10), 3)
}
