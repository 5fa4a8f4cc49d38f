package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_LoadRecord_InsertThenSkip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	rec := sampleRecord()
	hash := rec.ContentHash()

	outcome, err := s.LoadRecord(ctx, "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	// Reloading the identical record is a no-op.
	outcome, err = s.LoadRecord(ctx, "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	n, err := s.CountRecords(ctx, "pqr_aire")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_LoadRecord_UpdateOnChangedContent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := sampleRecord()
	_, err := s.LoadRecord(ctx, "pqr_aire", rec, rec.ContentHash())
	require.NoError(t, err)

	// Same radicado, changed business field: content hash differs.
	changed := sampleRecord()
	changed.Fields["estado"] = "ABIERTO"
	changed.Fields["nic"] = "9999999"

	outcome, err := s.LoadRecord(ctx, "pqr_aire", changed, changed.ContentHash())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	n, err := s.CountRecords(ctx, "pqr_aire")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_LoadRecord_TablesAreIsolated(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	rec := sampleRecord()
	hash := rec.ContentHash()

	outcome, err := s.LoadRecord(ctx, "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	// The same record loads fresh into the other company's table.
	outcome, err = s.LoadRecord(ctx, "pqr_afinia", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
}
