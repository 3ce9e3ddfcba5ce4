package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDisabled(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := Run{
		ID:        "r1",
		Query:     "which region leads?",
		Process:   "sequential",
		Status:    "partial",
		Analysis:  "Lazio leads.\n=== DATA FOR VISUALIZATION (CSV) ===\nregione,numero\nLazio,3\n",
		Outcome:   "rendered",
		Message:   "ok",
		ChartType: "bar",
		Image:     []byte{0x89, 'P', 'N', 'G'},
		ImagePath: "/tmp/plots/visualization_1.png",
		States:    []string{"ANALYZE", "VISUALIZE", "REPORT", "DONE"},
		Errors:    map[string]string{"reporting_task": "closing note: boom"},
		TimingsMS: map[string]int64{"analysis_task": 1200},
		Duration:  1500 * time.Millisecond,
		CreatedAt: created,
	}
	require.NoError(t, s.Put(ctx, run))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.Query, got.Query)
	assert.Equal(t, run.States, got.States)
	assert.Equal(t, run.Errors, got.Errors)
	assert.Equal(t, run.TimingsMS, got.TimingsMS)
	assert.Equal(t, run.Image, got.Image)
	assert.Equal(t, run.Duration, got.Duration)
	assert.True(t, created.Equal(got.CreatedAt))

	rep := got.Report()
	assert.Equal(t, "Lazio leads.", rep.Analysis)
	assert.Equal(t, "bar", rep.Visualization.Kind)
	require.NotNil(t, rep.Visualization.Image)
	assert.Equal(t, "/tmp/plots/visualization_1.png", rep.Visualization.Image.Path)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutReplaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := Run{ID: "r1", Query: "q", Process: "sequential", Status: "error", CreatedAt: time.Now()}
	require.NoError(t, s.Put(ctx, run))
	run.Status = "ok"
	require.NoError(t, s.Put(ctx, run))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ok", runs[0].Status)
}

func TestListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, Run{
			ID: id, Query: id, Process: "sequential", Status: "ok",
			CreatedAt: base.Add(time.Duration(i) * 500 * time.Millisecond),
		}))
	}
	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestMemoryDSN(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(context.Background(), Run{ID: "m", Query: "q", Process: "sequential", Status: "ok", CreatedAt: time.Now()}))
	_, err = s.Get(context.Background(), "m")
	require.NoError(t, err)
}
