package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospital-sim/hospital-sim/sim/trace"
)

func openMemory(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPersistEvents_RoundTrip(t *testing.T) {
	repo := openMemory(t)
	rec := trace.NewRecorder()
	ts := time.Date(2025, time.January, 6, 9, 30, 0, 0, time.UTC)
	rec.Record(ts, "exam_start", map[string]any{"agent": "p1", "equipment": "xray_1"})
	rec.Record(ts.Add(15*time.Minute), "exam_complete", map[string]any{"agent": "p1"})

	require.NoError(t, repo.PersistEvents(rec.Events()))

	got, err := repo.LoadEvents()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exam_start", got[0].Type)
	assert.True(t, got[0].Timestamp.Equal(ts))
	assert.Equal(t, "p1", got[0].Payload["agent"])

	// Re-persisting the same batch must not duplicate rows
	require.NoError(t, repo.PersistEvents(rec.Events()))
	again, err := repo.LoadEvents()
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestPersistEvents_EmptyBatchIsNoOp(t *testing.T) {
	repo := openMemory(t)
	require.NoError(t, repo.PersistEvents(nil))
	got, err := repo.LoadEvents()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPersistSnapshot_RoundTrip(t *testing.T) {
	repo := openMemory(t)
	ts := time.Date(2025, time.January, 6, 18, 0, 0, 0, time.UTC)

	type report struct {
		Patients int `json:"patients"`
		Exams    int `json:"exams"`
	}
	require.NoError(t, repo.PersistSnapshot(ts, "metrics", report{Patients: 12, Exams: 30}))
	require.NoError(t, repo.PersistSnapshot(ts.Add(time.Hour), "metrics", report{Patients: 15, Exams: 41}))

	bodies, err := repo.LoadSnapshots("metrics")
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"patients":12,"exams":30}`, bodies[0])

	other, err := repo.LoadSnapshots("pool")
	require.NoError(t, err)
	assert.Empty(t, other)
}
