// Package loader deduplicates extracted records into the target store.
// The dedup decision is content-hash first: an identical record is
// skipped, a known radicado with changed content is updated, anything
// else is inserted. Each record is applied in its own transaction so a
// mid-run crash never leaves a half-written batch.
package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

// Outcome classifies what the store did with one record.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Store applies one record to a company table inside a transaction.
// Implemented by PostgresStore and SQLiteStore.
type Store interface {
	// LoadRecord resolves the dedup decision for rec (identified by
	// hash) against table and applies it atomically.
	LoadRecord(ctx context.Context, table string, rec *model.ExtractedRecord, hash string) (Outcome, error)

	// Migrate creates the per-company tables and indexes.
	Migrate(ctx context.Context) error

	Close() error
}

// Loader binds a store to one company table and computes content hashes.
type Loader struct {
	store Store
	table string
	log   *zap.Logger
}

// New creates a loader targeting one company table.
func New(store Store, table string) *Loader {
	return &Loader{
		store: store,
		table: table,
		log: zap.L().With(
			zap.String("component", "loader"),
			zap.String("table", table),
		),
	}
}

// Load applies one extracted record. Records without a radicado cannot
// be keyed and are rejected before touching the store.
func (l *Loader) Load(ctx context.Context, rec *model.ExtractedRecord) (Outcome, error) {
	if rec == nil || rec.Radicado == "" {
		return OutcomeFailed, eris.New("loader: record has no radicado")
	}

	hash := rec.ContentHash()
	outcome, err := l.store.LoadRecord(ctx, l.table, rec, hash)
	if err != nil {
		return OutcomeFailed, eris.Wrapf(err, "loader: load %s", rec.Radicado)
	}

	l.log.Debug("record loaded",
		zap.String("radicado", rec.Radicado),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}
