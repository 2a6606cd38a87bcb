// gen3dapi/job/registry_test.go
package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_CRUD(t *testing.T) {
	reg := NewMemoryRegistry()

	j := New("job-1", "/uploads/job-1.mp4")
	require.NoError(t, reg.Create(j))
	assert.ErrorIs(t, reg.Create(j), ErrExists)

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, "/uploads/job-1.mp4", got.SourcePath)

	_, err = reg.Get("unknown-id")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := reg.Update("job-1", func(j *Job) {
		j.Status = StatusProcessing
		j.Progress = 20
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, updated.Status)
	assert.Equal(t, 20, updated.Progress)

	_, err = reg.Update("unknown-id", func(j *Job) {})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.Delete("job-1"))
	assert.ErrorIs(t, reg.Delete("job-1"), ErrNotFound)
	_, err = reg.Get("job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_List(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Create(New("a", "")))
	require.NoError(t, reg.Create(New("b", "")))

	jobs := reg.List()
	assert.Len(t, jobs, 2)

	ids := map[string]bool{}
	for _, j := range jobs {
		ids[j.ID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestMemoryRegistry_UpdateIsAtomic(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Create(New("job-1", "")))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Update("job-1", func(j *Job) {
				j.Progress++
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestMemoryRegistry_GetReturnsSnapshot(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Create(New("job-1", "")))

	snap, err := reg.Get("job-1")
	require.NoError(t, err)
	snap.Progress = 99

	fresh, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Progress)
}

func TestValidTransition(t *testing.T) {
	assert.True(t, ValidTransition(StatusQueued, StatusProcessing))
	assert.True(t, ValidTransition(StatusProcessing, StatusCompleted))
	assert.True(t, ValidTransition(StatusProcessing, StatusFailed))

	assert.False(t, ValidTransition(StatusQueued, StatusCompleted))
	assert.False(t, ValidTransition(StatusCompleted, StatusProcessing))
	assert.False(t, ValidTransition(StatusFailed, StatusProcessing))
	assert.False(t, ValidTransition(StatusCompleted, StatusQueued))
}
