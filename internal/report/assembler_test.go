package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reportlab/internal/errors"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: 37, G: 99, B: 235, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func testMeta(logo string) Meta {
	return Meta{
		Title:        "Data Analysis Report",
		SourceName:   "sales.csv",
		LogoPath:     logo,
		GeneratedAt:  time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Rows:         120,
		Columns:      5,
		MissingCells: 3,
	}
}

func TestAssembler_Assemble(t *testing.T) {
	dir := t.TempDir()
	hist := writeTestPNG(t, dir, "hist.png")
	box := writeTestPNG(t, dir, "box.png")
	logo := writeTestPNG(t, dir, "logo.png")

	sections := []Section{
		{
			Title: "revenue",
			Stats: &StatsTable{
				Header: []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"},
				Rows:   [][]string{{"120", "42.5", "7.1", "10", "38", "42", "47", "80"}},
			},
			ImagePaths: []string{hist, box},
		},
	}

	var buf bytes.Buffer
	pages, err := NewAssembler(slog.Default()).Assemble(&buf, testMeta(logo), sections)
	require.NoError(t, err)
	assert.Greater(t, pages, 0)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")), "output should be a PDF document")
}

func TestAssembler_DeterministicPageCount(t *testing.T) {
	dir := t.TempDir()
	img := writeTestPNG(t, dir, "chart.png")

	sections := make([]Section, 6)
	for i := range sections {
		sections[i] = Section{Title: "column", ImagePaths: []string{img}}
	}

	assembler := NewAssembler(slog.Default())

	var first, second bytes.Buffer
	pagesFirst, err := assembler.Assemble(&first, testMeta(""), sections)
	require.NoError(t, err)
	pagesSecond, err := assembler.Assemble(&second, testMeta(""), sections)
	require.NoError(t, err)

	assert.Equal(t, pagesFirst, pagesSecond)
	assert.Greater(t, pagesFirst, 1, "six image sections should overflow one landscape page")
}

func TestAssembler_MissingImage(t *testing.T) {
	sections := []Section{
		{Title: "revenue", ImagePaths: []string{filepath.Join(t.TempDir(), "gone.png")}},
	}

	var buf bytes.Buffer
	_, err := NewAssembler(slog.Default()).Assemble(&buf, testMeta(""), sections)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReportAssembly)
	assert.Zero(t, buf.Len(), "no partial document may be written")
}

func TestAssembler_MissingLogo(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewAssembler(slog.Default()).Assemble(&buf, testMeta("/nonexistent/logo.png"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReportAssembly)
	assert.Zero(t, buf.Len())
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	keep := writeTestPNG(t, dir, "keep.png")
	gone := writeTestPNG(t, dir, "gone.png")

	RemoveArtifacts(slog.Default(), []string{gone, "", filepath.Join(dir, "never-existed.png")})

	_, err := os.Stat(gone)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}
