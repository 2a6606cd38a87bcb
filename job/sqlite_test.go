// gen3dapi/job/sqlite_test.go
package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	reg, err := NewSQLiteRegistry(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestSQLiteRegistry_RoundTrip(t *testing.T) {
	reg := newTestSQLiteRegistry(t)

	j := New("job-1", "/uploads/job-1.mp4")
	require.NoError(t, reg.Create(j))
	assert.ErrorIs(t, reg.Create(j), ErrExists)

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, "/uploads/job-1.mp4", got.SourcePath)
	assert.WithinDuration(t, j.CreatedAt, got.CreatedAt, 0)

	_, err = reg.Get("unknown-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRegistry_Update(t *testing.T) {
	reg := newTestSQLiteRegistry(t)
	require.NoError(t, reg.Create(New("job-1", "")))

	updated, err := reg.Update("job-1", func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.DownloadURL = "/download/job-1.ply"
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "/download/job-1.ply", got.DownloadURL)

	_, err = reg.Update("unknown-id", func(j *Job) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRegistry_DeleteAndList(t *testing.T) {
	reg := newTestSQLiteRegistry(t)
	require.NoError(t, reg.Create(New("a", "")))
	require.NoError(t, reg.Create(New("b", "")))

	assert.Len(t, reg.List(), 2)

	require.NoError(t, reg.Delete("a"))
	assert.ErrorIs(t, reg.Delete("a"), ErrNotFound)
	assert.Len(t, reg.List(), 1)

	_, err := reg.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}
