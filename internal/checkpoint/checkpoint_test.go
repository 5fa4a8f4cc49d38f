package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DirStore {
	t.Helper()
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestDirStore_LoadLatestEmpty(t *testing.T) {
	s := newTestStore(t)
	st, err := s.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestDirStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Save(State{
		CurrentPage:      3,
		TotalRecords:     100,
		ProcessedRecords: 30,
		RecordsPerPage:   10,
		TotalPages:       10,
	})
	require.NoError(t, err)
	assert.Contains(t, id, "checkpoint_")
	assert.Contains(t, id, ".json")

	st, err := s.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 3, st.CurrentPage)
	assert.Equal(t, 30, st.ProcessedRecords)
	assert.False(t, st.LastCheckpoint.IsZero())
}

func TestDirStore_Monotonicity(t *testing.T) {
	s := newTestStore(t)

	var maxProcessed int
	for i, processed := range []int{10, 20, 20, 45, 90} {
		_, err := s.Save(State{CurrentPage: i + 1, ProcessedRecords: processed})
		require.NoError(t, err)
		if processed > maxProcessed {
			maxProcessed = processed
		}

		st, err := s.LoadLatest()
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.GreaterOrEqual(t, st.ProcessedRecords, maxProcessed)
	}
}

func TestDirStore_SameSecondSavesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	s.now = func() time.Time { return fixed }

	id1, err := s.Save(State{ProcessedRecords: 1})
	require.NoError(t, err)
	id2, err := s.Save(State{ProcessedRecords: 2})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestDirStore_SameMtimeTieBreaksOnNewerSave(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC)
	s.now = func() time.Time { return fixed }

	_, err := s.Save(State{CurrentPage: 4, ProcessedRecords: 20})
	require.NoError(t, err)
	_, err = s.Save(State{CurrentPage: 5, ProcessedRecords: 20})
	require.NoError(t, err)

	// Force byte-identical mtimes, as back-to-back writes produce.
	entries, err := os.ReadDir(sDir(s))
	require.NoError(t, err)
	stamp := time.Now()
	for _, e := range entries {
		require.NoError(t, os.Chtimes(filepath.Join(sDir(s), e.Name()), stamp, stamp))
	}

	st, err := s.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 5, st.CurrentPage)
}

func TestDirStore_SkipsCorruptCheckpoints(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(State{CurrentPage: 5, ProcessedRecords: 50})
	require.NoError(t, err)

	// A newer but corrupt checkpoint must be skipped.
	path := filepath.Join(sDir(s), "checkpoint_99991231_235959.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	st, err := s.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 5, st.CurrentPage)
}

func TestDirStore_AllCorruptReturnsNil(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(sDir(s), "checkpoint_20240301_120000.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	st, err := s.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestTotalPagesFor(t *testing.T) {
	tests := []struct {
		total, perPage, want int
	}{
		{333529, 10, 33353},
		{100, 10, 10},
		{101, 10, 11},
		{0, 10, 0},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPagesFor(tt.total, tt.perPage))
	}
}

// sDir exposes the store directory for test fixtures.
func sDir(s *DirStore) string { return s.dir }
