package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	db := openMemory(t)

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, db.RecordRun(&Run{
		ID: "r1", StartedAt: base, FinishedAt: base.Add(2 * time.Second),
		Head: "abc", Generation: "g1", Commits: 10, Documents: 4, Added: 4, Status: StatusOK,
	}))
	require.NoError(t, db.RecordRun(&Run{
		ID: "r2", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second),
		Status: StatusFailed, ErrorKind: "network", Error: "network error: timed out",
	}))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "network", runs[0].ErrorKind)
	assert.Equal(t, "r1", runs[1].ID)
	assert.Equal(t, 10, runs[1].Commits)
	assert.Equal(t, 2*time.Second, runs[1].Duration())
	assert.True(t, base.Equal(runs[1].StartedAt))

	limited, err := db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLastSuccess(t *testing.T) {
	db := openMemory(t)

	run, err := db.LastSuccess()
	require.NoError(t, err)
	assert.Nil(t, run)

	now := time.Now()
	require.NoError(t, db.RecordRun(&Run{ID: "ok", StartedAt: now, FinishedAt: now, Status: StatusOK, Head: "h1"}))
	require.NoError(t, db.RecordRun(&Run{ID: "bad", StartedAt: now.Add(time.Second), FinishedAt: now.Add(time.Second), Status: StatusFailed}))

	run, err = db.LastSuccess()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "ok", run.ID)
	assert.Equal(t, "h1", run.Head)
}

func TestRecordRunUpserts(t *testing.T) {
	db := openMemory(t)
	now := time.Now()

	require.NoError(t, db.RecordRun(&Run{ID: "r", StartedAt: now, FinishedAt: now, Status: StatusFailed}))
	require.NoError(t, db.RecordRun(&Run{ID: "r", StartedAt: now, FinishedAt: now, Status: StatusOK}))

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusOK, runs[0].Status)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, db.RecordRun(&Run{ID: "r", StartedAt: now, FinishedAt: now, Status: StatusOK}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
