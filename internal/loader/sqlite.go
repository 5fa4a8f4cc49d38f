package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-host
// runs where standing up Postgres is not worth it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteRecordTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	radicado         TEXT PRIMARY KEY,
	fecha_radicacion TEXT,
	tipo_tramite     TEXT,
	numero_reclamo   TEXT,
	nic              TEXT,
	estado           TEXT,
	asunto           TEXT,
	fields           TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	document_path    TEXT,
	attachment_path  TEXT,
	snapshot_path    TEXT,
	source_url       TEXT,
	extracted_at     DATETIME,
	loaded_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_content_hash ON %[1]s(content_hash);
CREATE INDEX IF NOT EXISTS idx_%[1]s_fecha ON %[1]s(fecha_radicacion);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, table := range recordTables {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteRecordTableDDL, table)); err != nil {
			return eris.Wrapf(err, "sqlite: migrate %s", table)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadRecord mirrors the Postgres dedup decision with database/sql
// transactions.
func (s *SQLiteStore) LoadRecord(ctx context.Context, table string, rec *model.ExtractedRecord, hash string) (Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeFailed, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT radicado FROM %s WHERE content_hash = ? LIMIT 1`, table),
		hash,
	).Scan(&existing)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return OutcomeFailed, eris.Wrap(err, "sqlite: commit skip")
		}
		return OutcomeSkipped, nil
	case !errors.Is(err, sql.ErrNoRows):
		return OutcomeFailed, eris.Wrap(err, "sqlite: lookup by hash")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return OutcomeFailed, eris.Wrap(err, "sqlite: marshal fields")
	}
	now := time.Now().UTC()

	var storedHash string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT content_hash FROM %s WHERE radicado = ?`, table),
		rec.Radicado,
	).Scan(&storedHash)
	switch {
	case err == nil:
		if storedHash == hash {
			// Keyed row already carries this content; do not rewrite it.
			if err := tx.Commit(); err != nil {
				return OutcomeFailed, eris.Wrap(err, "sqlite: commit keyed skip")
			}
			return OutcomeSkipped, nil
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET
				fecha_radicacion = ?, tipo_tramite = ?, numero_reclamo = ?,
				nic = ?, estado = ?, asunto = ?, fields = ?,
				content_hash = ?, document_path = ?, attachment_path = ?,
				snapshot_path = ?, source_url = ?, extracted_at = ?,
				updated_at = ?
			WHERE radicado = ?`, table),
			rec.Field("fecha_radicacion"), rec.Field("tipo_tramite"),
			rec.Field("numero_reclamo"), rec.Field("nic"),
			rec.Field("estado"), rec.Field("asunto"), string(fieldsJSON),
			hash, rec.DocumentPath, rec.AttachmentPath,
			rec.SnapshotPath, rec.SourceURL, rec.ExtractedAt, now,
			rec.Radicado,
		)
		if err != nil {
			return OutcomeFailed, eris.Wrapf(err, "sqlite: update %s", rec.Radicado)
		}
		if err := tx.Commit(); err != nil {
			return OutcomeFailed, eris.Wrap(err, "sqlite: commit update")
		}
		return OutcomeUpdated, nil
	case !errors.Is(err, sql.ErrNoRows):
		return OutcomeFailed, eris.Wrap(err, "sqlite: lookup by radicado")
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			radicado, fecha_radicacion, tipo_tramite, numero_reclamo,
			nic, estado, asunto, fields, content_hash,
			document_path, attachment_path, snapshot_path,
			source_url, extracted_at, loaded_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		rec.Radicado,
		rec.Field("fecha_radicacion"), rec.Field("tipo_tramite"),
		rec.Field("numero_reclamo"), rec.Field("nic"),
		rec.Field("estado"), rec.Field("asunto"), string(fieldsJSON), hash,
		rec.DocumentPath, rec.AttachmentPath, rec.SnapshotPath,
		rec.SourceURL, rec.ExtractedAt, now, now,
	)
	if err != nil {
		return OutcomeFailed, eris.Wrapf(err, "sqlite: insert %s", rec.Radicado)
	}
	if err := tx.Commit(); err != nil {
		return OutcomeFailed, eris.Wrap(err, "sqlite: commit insert")
	}
	return OutcomeInserted, nil
}

// CountRecords returns the number of loaded records in a company table.
func (s *SQLiteStore) CountRecords(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table),
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count %s", table)
}
