// Package paginate drives the page-by-page extraction loop under
// operator control: restore or fresh-start, process each page's records,
// poll control signals, checkpoint periodically, and advance pages until
// the result set ends or the operator stops the run.
package paginate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/browser"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/checkpoint"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/control"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/portal"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/resilience"
)

// Config tunes the pagination loop.
type Config struct {
	// CheckpointFrequency is how many pages between checkpoint saves.
	CheckpointFrequency int `yaml:"checkpoint_frequency" mapstructure:"checkpoint_frequency"`

	// MaxRecordsPerSession bounds how many records are extracted from
	// one page, keeping checkpoint cadence predictable.
	MaxRecordsPerSession int `yaml:"max_records_per_session" mapstructure:"max_records_per_session"`

	// BannerWait bounds how long the first page gets to render its
	// pagination banner.
	BannerWait time.Duration `yaml:"banner_wait" mapstructure:"banner_wait"`

	// PauseTick is the re-poll interval while paused.
	PauseTick time.Duration `yaml:"pause_tick" mapstructure:"pause_tick"`

	// PageInterval is the minimum spacing between page loads, so the
	// portal is not hammered.
	PageInterval time.Duration `yaml:"page_interval" mapstructure:"page_interval"`
}

func (c Config) withDefaults() Config {
	if c.CheckpointFrequency <= 0 {
		c.CheckpointFrequency = 5
	}
	if c.MaxRecordsPerSession <= 0 {
		c.MaxRecordsPerSession = 1000
	}
	if c.BannerWait <= 0 {
		c.BannerWait = 15 * time.Second
	}
	if c.PauseTick <= 0 {
		c.PauseTick = 5 * time.Second
	}
	if c.PageInterval <= 0 {
		c.PageInterval = 2 * time.Second
	}
	return c
}

// RecordExtractor is the per-record extraction capability the engine
// drives. Implemented by extract.Extractor.
type RecordExtractor interface {
	ExtractRecord(ctx context.Context, rowOrdinal, recordNumber int) *model.Report
}

// Sink receives each record that produced a structured snapshot,
// normally to load it into the target store. Errors are counted, never
// fatal to the run.
type Sink func(ctx context.Context, rec *model.ExtractedRecord) error

// Engine is the page-level state machine.
type Engine struct {
	drv       browser.Driver
	profile   *portal.Profile
	extractor RecordExtractor
	ctrl      control.Store
	ckpt      checkpoint.Store
	sink      Sink
	cfg       Config
	limiter   *rate.Limiter
	log       *zap.Logger
	now       func() time.Time
}

// New wires a pagination engine for one company.
func New(drv browser.Driver, profile *portal.Profile, extractor RecordExtractor, ctrl control.Store, ckpt checkpoint.Store, sink Sink, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		drv:       drv,
		profile:   profile,
		extractor: extractor,
		ctrl:      ctrl,
		ckpt:      ckpt,
		sink:      sink,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.PageInterval), 1),
		log: zap.L().With(
			zap.String("component", "paginate.engine"),
			zap.String("company", profile.Name),
		),
		now: time.Now,
	}
}

// Run executes the pagination loop until the result set is exhausted,
// the operator stops the run, or the portal stops cooperating. The
// returned stats are valid even when err is non-nil.
func (e *Engine) Run(ctx context.Context) (*model.RunStats, error) {
	stats := &model.RunStats{
		Company:   e.profile.Name,
		StartedAt: e.now().UTC(),
	}
	defer func() { stats.FinishedAt = e.now().UTC() }()

	state, done, err := e.initState(ctx)
	if err != nil {
		return stats, err
	}
	if done {
		e.log.Info("checkpoint is past the last page, batch already complete",
			zap.Int("current_page", state.CurrentPage),
			zap.Int("total_pages", state.TotalPages),
		)
		e.emitStatus(state, false, false)
		return stats, nil
	}

	for {
		if err := e.limiter.Wait(ctx); err != nil {
			e.finalize(state, stats, true)
			return stats, eris.Wrap(err, "paginate: canceled")
		}

		page := e.processPage(ctx, state)
		stats.Add(page)
		e.emitStatus(state, false, false)

		if state.CurrentPage%e.cfg.CheckpointFrequency == 0 {
			e.saveCheckpoint(state, stats)
		}

		stop := e.checkControl(ctx, state, stats)
		if stop {
			e.log.Info("stop signal honored", zap.Int("page", state.CurrentPage))
			// The page just finished was fully committed; resume from
			// the next one so no record is double-counted.
			state.CurrentPage++
			e.finalize(state, stats, true)
			return stats, nil
		}
		if ctx.Err() != nil {
			state.CurrentPage++
			e.finalize(state, stats, true)
			return stats, eris.Wrap(ctx.Err(), "paginate: canceled")
		}

		advanced, advErr := e.advancePage(ctx)
		if advErr != nil {
			// A stuck next-page control ends the run cleanly rather
			// than retrying into an infinite loop. The current page is
			// fully committed; resume from the next one.
			e.log.Warn("page advance failed, finalizing run", zap.Error(advErr))
			state.CurrentPage++
			e.finalize(state, stats, false)
			return stats, nil
		}
		if !advanced {
			e.log.Info("no next page, batch complete",
				zap.Int("pages", stats.PagesProcessed))
			// Park the resume point past the end so a later run over the
			// same checkpoint directory does not re-extract the last page.
			state.CurrentPage++
			e.finalize(state, stats, false)
			return stats, nil
		}
		state.CurrentPage++
	}
}

// initState restores the newest checkpoint or derives a fresh state from
// the first page's pagination banner. done is true when the checkpoint
// already sits past the last page: the batch finished in an earlier
// session and there is nothing left to extract.
func (e *Engine) initState(ctx context.Context) (*checkpoint.State, bool, error) {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("paginate.engine", "open list page")
	navErr := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return e.drv.Navigate(ctx, e.profile.ListURL)
	})
	if navErr != nil {
		return nil, false, eris.Wrap(navErr, "paginate: open list page")
	}

	restored, err := e.ckpt.LoadLatest()
	if err != nil {
		return nil, false, eris.Wrap(err, "paginate: load checkpoint")
	}
	if restored != nil {
		restored.SessionStart = e.now().UTC()
		if restored.TotalPages > 0 && restored.CurrentPage > restored.TotalPages {
			return restored, true, nil
		}
		e.log.Info("resuming from checkpoint",
			zap.Int("current_page", restored.CurrentPage),
			zap.Int("processed_records", restored.ProcessedRecords),
		)
		if err := e.skipToPage(ctx, restored.CurrentPage); err != nil {
			return nil, false, err
		}
		return restored, false, nil
	}

	if err := e.drv.WaitVisible(ctx, e.profile.Banner, e.cfg.BannerWait); err != nil {
		e.log.Warn("pagination banner slow to render", zap.Error(err))
	}
	bannerText, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return e.drv.Text(ctx, e.profile.Banner)
	})
	if err != nil {
		return nil, false, eris.Wrap(err, "paginate: read pagination banner")
	}
	banner, err := ParseBanner(bannerText)
	if err != nil {
		return nil, false, err
	}

	perPage := banner.PerPage()
	state := &checkpoint.State{
		CurrentPage:    1,
		TotalRecords:   banner.Total,
		RecordsPerPage: perPage,
		TotalPages:     checkpoint.TotalPagesFor(banner.Total, perPage),
		SessionStart:   e.now().UTC(),
	}
	e.log.Info("fresh start",
		zap.Int("total_records", state.TotalRecords),
		zap.Int("records_per_page", state.RecordsPerPage),
		zap.Int("total_pages", state.TotalPages),
	)
	return state, false, nil
}

// skipToPage clicks through pages without extracting until the list is
// positioned at the target page. Pages before the checkpoint were fully
// committed; re-walking them would double-count records.
func (e *Engine) skipToPage(ctx context.Context, target int) error {
	for current := 1; current < target; current++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "paginate: canceled while skipping")
		}
		advanced, err := e.advancePage(ctx)
		if err != nil {
			return eris.Wrapf(err, "paginate: skip to page %d", target)
		}
		if !advanced {
			return eris.Errorf("paginate: result set ended at page %d while skipping to %d", current, target)
		}
	}
	return nil
}

// processPage runs the extractor over the current page's rows, bounded
// by the page size and max_records_per_session, and feeds useful
// records to the sink.
func (e *Engine) processPage(ctx context.Context, state *checkpoint.State) model.PageStats {
	page := model.PageStats{Page: state.CurrentPage}
	log := e.log.With(zap.Int("page", state.CurrentPage))

	rows, err := e.drv.Count(ctx, e.profile.Rows)
	if err != nil {
		log.Warn("could not count rows, assuming page size", zap.Error(err))
		rows = state.RecordsPerPage
	}
	if state.RecordsPerPage > 0 && rows > state.RecordsPerPage {
		rows = state.RecordsPerPage
	}
	if rows > e.cfg.MaxRecordsPerSession {
		rows = e.cfg.MaxRecordsPerSession
	}

	for i := 1; i <= rows; i++ {
		recordNumber := state.ProcessedRecords + 1
		report := e.extractor.ExtractRecord(ctx, i, recordNumber)

		state.ProcessedRecords++
		if report.Processed {
			page.Processed++
		} else {
			page.Failed++
		}
		if report.Useful() {
			page.Successful++
		}

		if e.sink != nil && report.Record != nil {
			if sinkErr := e.sink(ctx, report.Record); sinkErr != nil {
				log.Warn("record sink failed, artifact kept for replay",
					zap.String("radicado", report.Radicado),
					zap.Error(sinkErr),
				)
			}
		}
	}

	log.Info("page processed",
		zap.Int("records", rows),
		zap.Int("successful", page.Successful),
		zap.Int("failed", page.Failed),
	)
	return page
}

// checkControl polls the operator channel. Returns true when the run
// must stop. PAUSE enters a wait loop that re-polls every PauseTick and
// emits a status update each tick until RESUME or STOP.
func (e *Engine) checkControl(ctx context.Context, state *checkpoint.State, stats *model.RunStats) (stop bool) {
	switch e.ctrl.Poll() {
	case control.SignalStop:
		return true
	case control.SignalPause:
		e.log.Info("pause signal received, waiting for resume")
		for {
			e.emitStatus(state, true, false)
			select {
			case <-ctx.Done():
				return true
			case <-time.After(e.cfg.PauseTick):
			}
			switch e.ctrl.Poll() {
			case control.SignalStop:
				return true
			case control.SignalPause:
				// still paused
			default:
				e.log.Info("resuming after pause")
				return false
			}
		}
	default:
		return false
	}
}

func (e *Engine) emitStatus(state *checkpoint.State, paused, stopped bool) {
	e.ctrl.Emit(control.Status{
		Timestamp:          e.now().UTC(),
		Company:            e.profile.Name,
		CurrentPage:        state.CurrentPage,
		TotalPages:         state.TotalPages,
		ProcessedRecords:   state.ProcessedRecords,
		TotalRecords:       state.TotalRecords,
		ProgressPercentage: control.Progress(state.ProcessedRecords, state.TotalRecords),
		IsPaused:           paused,
		IsStopped:          stopped,
		EstimatedRemaining: control.EstimateRemaining(
			state.ProcessedRecords, state.TotalRecords, e.now().Sub(state.SessionStart)),
	})
}

// advancePage reports whether a next page exists and was navigated to.
// An absent or disabled control means the result set is exhausted.
func (e *Engine) advancePage(ctx context.Context) (bool, error) {
	n, err := e.drv.Count(ctx, e.profile.NextPage)
	if err != nil || n == 0 {
		return false, nil
	}
	enabled, err := e.drv.Enabled(ctx, e.profile.NextPage)
	if err != nil || !enabled {
		return false, nil
	}
	if err := e.drv.Click(ctx, e.profile.NextPage); err != nil {
		return false, eris.Wrap(err, "paginate: click next page")
	}
	return true, nil
}

// saveCheckpoint persists progress. Save failures are logged, never
// fatal: losing a checkpoint costs re-work, not correctness.
func (e *Engine) saveCheckpoint(state *checkpoint.State, stats *model.RunStats) {
	state.Timestamp = e.now().UTC()
	if _, err := e.ckpt.Save(*state); err != nil {
		e.log.Warn("checkpoint save failed", zap.Error(err))
		return
	}
	stats.CheckpointsCreated++
}

// finalize always forces one last checkpoint and a final status emit.
func (e *Engine) finalize(state *checkpoint.State, stats *model.RunStats, stopped bool) {
	e.saveCheckpoint(state, stats)
	e.emitStatus(state, false, stopped)
	e.log.Info("run finalized",
		zap.Int("total_processed", stats.TotalProcessed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("pages_processed", stats.PagesProcessed),
		zap.Int("checkpoints_created", stats.CheckpointsCreated),
	)
}
