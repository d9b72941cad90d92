package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
)

func loadedTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.Load("test.csv", strings.NewReader("age,city\n34,Berlin\n29,Munich\n"))
	require.NoError(t, err)
	return table
}

func TestSession_WorkflowOrder(t *testing.T) {
	store := NewStore(time.Hour, slog.Default())
	s := store.Create()
	assert.Equal(t, StateNoFile, s.State())

	// Selecting or generating before an upload is rejected.
	err := s.SetPlan(Plan{Numeric: []string{"age"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = s.BeginReport()
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	s.AttachTable(loadedTable(t), "key", "test.csv", "")
	assert.Equal(t, StateLoaded, s.State())

	// Generating before selection is rejected.
	_, err = s.BeginReport()
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	require.NoError(t, s.SetPlan(Plan{Numeric: []string{"age"}, TopN: 20}))
	assert.Equal(t, StateAnalysisSelected, s.State())

	plan, err := s.BeginReport()
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, plan.Numeric)

	s.MarkReportGenerated()
	assert.Equal(t, StateReportGenerated, s.State())

	// Regenerating and re-selecting stay valid after a report.
	_, err = s.BeginReport()
	assert.NoError(t, err)
	require.NoError(t, s.SetPlan(Plan{Categorical: []string{"city"}}))
	assert.Equal(t, StateAnalysisSelected, s.State())
}

func TestSession_ReuploadResets(t *testing.T) {
	store := NewStore(time.Hour, slog.Default())
	s := store.Create()

	s.AttachTable(loadedTable(t), "key1", "first.csv", "")
	require.NoError(t, s.SetPlan(Plan{Numeric: []string{"age"}}))
	s.MarkReportGenerated()

	s.AttachTable(loadedTable(t), "key2", "second.csv", "")
	assert.Equal(t, StateLoaded, s.State())
	assert.True(t, s.Plan.Empty(), "re-upload must discard the previous selection")
	assert.Equal(t, "second.csv", s.SourceName)
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore(time.Hour, slog.Default())
	_, err := store.Get("nope")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_DeleteRemovesLogo(t *testing.T) {
	store := NewStore(time.Hour, slog.Default())
	s := store.Create()

	logo := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("png"), 0o644))
	s.AttachTable(loadedTable(t), "key", "test.csv", logo)

	store.Delete(s.ID)
	_, err := os.Stat(logo)
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, store.Len())

	// Deleting again is a no-op.
	store.Delete(s.ID)
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore(30*time.Minute, slog.Default())
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	var counts []int
	store.OnCountChange = func(n int) { counts = append(counts, n) }

	stale := store.Create()
	current = current.Add(20 * time.Minute)
	fresh := store.Create()

	current = current.Add(15 * time.Minute)
	assert.Equal(t, 1, store.Sweep())

	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1}, counts)
}
