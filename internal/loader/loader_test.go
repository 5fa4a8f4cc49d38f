package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
)

type fakeStore struct {
	outcome Outcome
	err     error
	gotHash string
	gotTbl  string
}

func (f *fakeStore) LoadRecord(_ context.Context, table string, _ *model.ExtractedRecord, hash string) (Outcome, error) {
	f.gotTbl = table
	f.gotHash = hash
	return f.outcome, f.err
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestLoader_Load_PassesContentHashAndTable(t *testing.T) {
	fs := &fakeStore{outcome: OutcomeInserted}
	l := New(fs, "pqr_afinia")
	rec := sampleRecord()

	outcome, err := l.Load(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.Equal(t, "pqr_afinia", fs.gotTbl)
	assert.Equal(t, rec.ContentHash(), fs.gotHash)
}

func TestLoader_Load_RejectsRecordWithoutRadicado(t *testing.T) {
	fs := &fakeStore{outcome: OutcomeInserted}
	l := New(fs, "pqr_aire")

	outcome, err := l.Load(context.Background(), &model.ExtractedRecord{})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, fs.gotHash)
}

func TestLoader_Load_WrapsStoreErrors(t *testing.T) {
	fs := &fakeStore{outcome: OutcomeFailed, err: assert.AnError}
	l := New(fs, "pqr_aire")

	outcome, err := l.Load(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "load 20240815-001234")
}
