package loader

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the argument
// count of an expectation to match the actual call exactly.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleRecord() *model.ExtractedRecord {
	return &model.ExtractedRecord{
		Radicado: "20240815-001234",
		Fields: map[string]string{
			"radicado":         "20240815-001234",
			"fecha_radicacion": "2024-08-15",
			"tipo_tramite":     "RECLAMO",
			"numero_reclamo":   "R-9981",
			"nic":              "5512345",
			"estado":           "CERRADO",
		},
		SnapshotPath: "processed/20240815-001234_data_20240815_120000.json",
		SourceURL:    "https://mercurio.air-e.com/mercurio/consulta/detallePqr.jsp?id=1",
		Company:      "aire",
		ExtractedAt:  time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestPostgresStore_LoadRecord_SkipsOnHashMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := sampleRecord()
	hash := rec.ContentHash()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT radicado FROM "pqr_aire" WHERE content_hash`).
		WithArgs(hash).
		WillReturnRows(pgxmock.NewRows([]string{"radicado"}).AddRow(rec.Radicado))
	mock.ExpectCommit()

	outcome, err := s.LoadRecord(context.Background(), "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRecord_UpdatesOnKeyMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := sampleRecord()
	hash := rec.ContentHash()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT radicado FROM "pqr_aire" WHERE content_hash`).
		WithArgs(hash).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT content_hash FROM "pqr_aire" WHERE radicado`).
		WithArgs(rec.Radicado).
		WillReturnRows(pgxmock.NewRows([]string{"content_hash"}).AddRow("stale-" + hash))
	mock.ExpectExec(`UPDATE "pqr_aire" SET`).
		WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	outcome, err := s.LoadRecord(context.Background(), "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRecord_SkipsOnKeyMatchWithSameHash(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := sampleRecord()
	hash := rec.ContentHash()

	// The hash index missed but the keyed row already carries identical
	// content; the row must not be rewritten.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT radicado FROM "pqr_aire" WHERE content_hash`).
		WithArgs(hash).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT content_hash FROM "pqr_aire" WHERE radicado`).
		WithArgs(rec.Radicado).
		WillReturnRows(pgxmock.NewRows([]string{"content_hash"}).AddRow(hash))
	mock.ExpectCommit()

	outcome, err := s.LoadRecord(context.Background(), "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRecord_InsertsNewRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := sampleRecord()
	hash := rec.ContentHash()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT radicado FROM "pqr_aire" WHERE content_hash`).
		WithArgs(hash).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT content_hash FROM "pqr_aire" WHERE radicado`).
		WithArgs(rec.Radicado).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO "pqr_aire"`).
		WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	outcome, err := s.LoadRecord(context.Background(), "pqr_aire", rec, hash)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRecord_RollsBackOnLookupError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := sampleRecord()
	hash := rec.ContentHash()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT radicado FROM "pqr_aire" WHERE content_hash`).
		WithArgs(hash).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	outcome, err := s.LoadRecord(context.Background(), "pqr_aire", rec, hash)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "lookup by hash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "pqr_aire"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "pqr_afinia"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
