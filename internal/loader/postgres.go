package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// recordTables are the per-company tables created by Migrate. Table
// names arrive from portal profiles, never from user input, but every
// interpolation still goes through pgx.Identifier.
var recordTables = []string{"pqr_aire", "pqr_afinia"}

const recordTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	radicado        TEXT PRIMARY KEY,
	fecha_radicacion TEXT,
	tipo_tramite    TEXT,
	numero_reclamo  TEXT,
	nic             TEXT,
	estado          TEXT,
	asunto          TEXT,
	fields          JSONB NOT NULL,
	content_hash    TEXT NOT NULL,
	document_path   TEXT,
	attachment_path TEXT,
	snapshot_path   TEXT,
	source_url      TEXT,
	extracted_at    TIMESTAMPTZ,
	loaded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_content_hash ON %[1]s(content_hash);
CREATE INDEX IF NOT EXISTS idx_%[1]s_fecha ON %[1]s(fecha_radicacion);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, table := range recordTables {
		ddl := fmt.Sprintf(recordTableDDL, pgx.Identifier{table}.Sanitize())
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return eris.Wrapf(err, "postgres: migrate %s", table)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// LoadRecord applies the dedup decision inside one transaction:
// identical content hash means skip, a known radicado with different
// content means update, everything else inserts.
func (s *PostgresStore) LoadRecord(ctx context.Context, table string, rec *model.ExtractedRecord, hash string) (Outcome, error) {
	tbl := pgx.Identifier{table}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OutcomeFailed, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	var existing string
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT radicado FROM %s WHERE content_hash = $1 LIMIT 1`, tbl),
		hash,
	).Scan(&existing)
	switch {
	case err == nil:
		// Unchanged content already loaded under some key.
		if err := tx.Commit(ctx); err != nil {
			return OutcomeFailed, eris.Wrap(err, "postgres: commit skip")
		}
		return OutcomeSkipped, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return OutcomeFailed, eris.Wrap(err, "postgres: lookup by hash")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return OutcomeFailed, eris.Wrap(err, "postgres: marshal fields")
	}
	now := time.Now().UTC()

	var storedHash string
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT content_hash FROM %s WHERE radicado = $1`, tbl),
		rec.Radicado,
	).Scan(&storedHash)
	switch {
	case err == nil:
		if storedHash == hash {
			// Keyed row already carries this content; do not rewrite it.
			if err := tx.Commit(ctx); err != nil {
				return OutcomeFailed, eris.Wrap(err, "postgres: commit keyed skip")
			}
			return OutcomeSkipped, nil
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET
				fecha_radicacion = $2, tipo_tramite = $3, numero_reclamo = $4,
				nic = $5, estado = $6, asunto = $7, fields = $8,
				content_hash = $9, document_path = $10, attachment_path = $11,
				snapshot_path = $12, source_url = $13, extracted_at = $14,
				updated_at = $15
			WHERE radicado = $1`, tbl),
			rec.Radicado,
			rec.Field("fecha_radicacion"), rec.Field("tipo_tramite"),
			rec.Field("numero_reclamo"), rec.Field("nic"),
			rec.Field("estado"), rec.Field("asunto"), fieldsJSON,
			hash, rec.DocumentPath, rec.AttachmentPath,
			rec.SnapshotPath, rec.SourceURL, rec.ExtractedAt, now,
		)
		if err != nil {
			return OutcomeFailed, eris.Wrapf(err, "postgres: update %s", rec.Radicado)
		}
		if err := tx.Commit(ctx); err != nil {
			return OutcomeFailed, eris.Wrap(err, "postgres: commit update")
		}
		return OutcomeUpdated, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return OutcomeFailed, eris.Wrap(err, "postgres: lookup by radicado")
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			radicado, fecha_radicacion, tipo_tramite, numero_reclamo,
			nic, estado, asunto, fields, content_hash,
			document_path, attachment_path, snapshot_path,
			source_url, extracted_at, loaded_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`, tbl),
		rec.Radicado,
		rec.Field("fecha_radicacion"), rec.Field("tipo_tramite"),
		rec.Field("numero_reclamo"), rec.Field("nic"),
		rec.Field("estado"), rec.Field("asunto"), fieldsJSON, hash,
		rec.DocumentPath, rec.AttachmentPath, rec.SnapshotPath,
		rec.SourceURL, rec.ExtractedAt, now,
	)
	if err != nil {
		return OutcomeFailed, eris.Wrapf(err, "postgres: insert %s", rec.Radicado)
	}
	if err := tx.Commit(ctx); err != nil {
		return OutcomeFailed, eris.Wrap(err, "postgres: commit insert")
	}
	return OutcomeInserted, nil
}

// CountRecords returns the number of loaded records in a company table.
func (s *PostgresStore) CountRecords(ctx context.Context, table string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{table}.Sanitize()),
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count %s", table)
}
