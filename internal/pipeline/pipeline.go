// Package pipeline wires one company's extraction run end to end:
// browser, extractor, pagination engine, operator control, checkpoints
// and the dedup loader, plus the multi-company batch orchestrator.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/artifacts"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/browser"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/checkpoint"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/config"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/control"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/extract"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/loader"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/paginate"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/portal"
)

// DriverFactory builds a browser driver for one company run.
type DriverFactory func(cfg browser.Config) (browser.Driver, error)

// Pipeline runs extraction for the configured companies. A nil store
// means extract-only: artifacts land on disk and nothing is loaded.
type Pipeline struct {
	cfg       *config.Config
	store     loader.Store
	newDriver DriverFactory
}

// New creates a pipeline backed by a real Chrome driver.
func New(cfg *config.Config, store loader.Store) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		store: store,
		newDriver: func(bcfg browser.Config) (browser.Driver, error) {
			return browser.NewChrome(bcfg)
		},
	}
}

// NewWithDriverFactory creates a pipeline with a custom driver factory.
func NewWithDriverFactory(cfg *config.Config, store loader.Store, factory DriverFactory) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, newDriver: factory}
}

// RunCompany executes one company's full extraction run and returns its
// stats. The stats are valid even when err is non-nil.
func (p *Pipeline) RunCompany(ctx context.Context, company string) (*model.RunStats, error) {
	runID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("company", company),
		zap.String("run_id", runID),
	)

	profile, err := portal.ByName(company)
	if err != nil {
		return &model.RunStats{RunID: runID, Company: company}, err
	}

	bcfg := p.cfg.Browser
	if bcfg.DownloadDir == "" {
		bcfg.DownloadDir = p.cfg.Paths.DownloadDir(company)
	}
	drv, err := p.newDriver(bcfg)
	if err != nil {
		return &model.RunStats{RunID: runID, Company: company},
			eris.Wrap(err, "pipeline: start browser")
	}
	defer drv.Close()

	art, err := artifacts.New(p.cfg.Paths.ArtifactDir(company))
	if err != nil {
		return &model.RunStats{RunID: runID, Company: company}, err
	}
	ctrl, err := control.NewFileStore(p.cfg.Paths.ControlDir(company))
	if err != nil {
		return &model.RunStats{RunID: runID, Company: company}, err
	}
	ckpt, err := checkpoint.NewDirStore(p.cfg.Paths.CheckpointDir(company))
	if err != nil {
		return &model.RunStats{RunID: runID, Company: company}, err
	}

	extractor := extract.New(drv, profile, art, p.cfg.Extract)

	var loadCounts struct {
		mu                                  sync.Mutex
		inserted, updated, skipped, loadErr int
	}
	var sink paginate.Sink
	if p.store != nil {
		ld := loader.New(p.store, profile.Table)
		sink = func(ctx context.Context, rec *model.ExtractedRecord) error {
			outcome, loadErr := ld.Load(ctx, rec)
			loadCounts.mu.Lock()
			defer loadCounts.mu.Unlock()
			switch outcome {
			case loader.OutcomeInserted:
				loadCounts.inserted++
			case loader.OutcomeUpdated:
				loadCounts.updated++
			case loader.OutcomeSkipped:
				loadCounts.skipped++
			default:
				loadCounts.loadErr++
			}
			return loadErr
		}
	}

	engine := paginate.New(drv, profile, extractor, ctrl, ckpt, sink, p.cfg.Paginate)

	log.Info("company run starting")
	stats, runErr := engine.Run(ctx)
	stats.RunID = runID

	loadCounts.mu.Lock()
	stats.Inserted = loadCounts.inserted
	stats.Updated = loadCounts.updated
	stats.Skipped = loadCounts.skipped
	stats.LoadErrs = loadCounts.loadErr
	loadCounts.mu.Unlock()

	log.Info("company run finished",
		zap.Int("total_processed", stats.TotalProcessed),
		zap.Int("successful", stats.Successful),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Error(runErr),
	)
	return stats, runErr
}

// RunAll processes every configured company. One company's failure is
// logged and does not abort the others.
func (p *Pipeline) RunAll(ctx context.Context) ([]*model.RunStats, error) {
	companies := p.cfg.Batch.Companies
	if len(companies) == 0 {
		return nil, eris.New("pipeline: no companies configured")
	}

	concurrency := p.cfg.Batch.MaxConcurrentCompanies
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	all := make([]*model.RunStats, 0, len(companies))

	for _, company := range companies {
		g.Go(func() error {
			stats, err := p.RunCompany(gctx, company)
			if err != nil {
				zap.L().Error("company run failed",
					zap.String("company", company),
					zap.Error(err),
				)
			}
			mu.Lock()
			all = append(all, stats)
			mu.Unlock()
			return nil // don't abort the batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return all, eris.Wrap(err, "pipeline: batch")
	}
	return all, nil
}

// Replay re-loads previously captured record snapshots from the artifact
// directory into the store without touching the portals. Used after a
// run where the store was down and records were kept on disk only.
func (p *Pipeline) Replay(ctx context.Context, company string) (*model.RunStats, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: replay needs a store")
	}
	profile, err := portal.ByName(company)
	if err != nil {
		return nil, err
	}
	art, err := artifacts.New(p.cfg.Paths.ArtifactDir(company))
	if err != nil {
		return nil, err
	}
	records, err := art.ListRecords()
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("company", company),
	)
	ld := loader.New(p.store, profile.Table)
	stats := &model.RunStats{RunID: uuid.New().String(), Company: company}

	for _, rec := range records {
		if ctx.Err() != nil {
			return stats, eris.Wrap(ctx.Err(), "pipeline: replay canceled")
		}
		outcome, loadErr := ld.Load(ctx, rec)
		switch outcome {
		case loader.OutcomeInserted:
			stats.Inserted++
		case loader.OutcomeUpdated:
			stats.Updated++
		case loader.OutcomeSkipped:
			stats.Skipped++
		default:
			stats.LoadErrs++
			log.Warn("replay load failed",
				zap.String("radicado", rec.Radicado),
				zap.Error(loadErr),
			)
		}
	}

	log.Info("replay finished",
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("load_errors", stats.LoadErrs),
	)
	return stats, nil
}
