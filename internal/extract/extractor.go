// Package extract implements the per-record extraction state machine:
// open the detail view, capture the identifier, render the document,
// fetch the attachment, capture the structured snapshot, close the view.
// Each step is independently allowed to fail; only a failed open aborts
// the record.
package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/artifacts"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/browser"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/model"
	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/portal"
)

// Config tunes the extractor's bounded waits and scan caps.
type Config struct {
	DetailWait      time.Duration `yaml:"detail_wait" mapstructure:"detail_wait"`
	DownloadTimeout time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`

	// GenericTableCap and GenericRowCap bound the best-effort key/value
	// table scan during snapshot capture.
	GenericTableCap int `yaml:"generic_table_cap" mapstructure:"generic_table_cap"`
	GenericRowCap   int `yaml:"generic_row_cap" mapstructure:"generic_row_cap"`
}

func (c Config) withDefaults() Config {
	if c.DetailWait <= 0 {
		c.DetailWait = 15 * time.Second
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 30 * time.Second
	}
	if c.GenericTableCap <= 0 {
		c.GenericTableCap = 3
	}
	if c.GenericRowCap <= 0 {
		c.GenericRowCap = 20
	}
	return c
}

// Extractor runs the fixed extraction sequence for single records.
type Extractor struct {
	drv     browser.Driver
	profile *portal.Profile
	art     *artifacts.Dir
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

// New creates an extractor for one company profile.
func New(drv browser.Driver, profile *portal.Profile, art *artifacts.Dir, cfg Config) *Extractor {
	return &Extractor{
		drv:     drv,
		profile: profile,
		art:     art,
		cfg:     cfg.withDefaults(),
		log: zap.L().With(
			zap.String("component", "extract.extractor"),
			zap.String("company", profile.Name),
		),
		now: time.Now,
	}
}

// openStrategies is the fixed OPEN_DETAIL fallback order.
var openStrategies = []browser.OpenStrategy{
	browser.OpenViaContextMenu,
	browser.OpenViaURL,
	browser.OpenViaModifierClick,
}

// ExtractRecord processes the rowOrdinal-th record (1-based within the
// page). recordNumber is the 1-based ordinal within the whole run, used
// for synthetic identifiers. The returned report always exists; a record
// is never retried within the same pass.
func (e *Extractor) ExtractRecord(ctx context.Context, rowOrdinal, recordNumber int) *model.Report {
	report := &model.Report{RecordNumber: recordNumber}
	log := e.log.With(zap.Int("record", recordNumber))

	view, openResult := e.openDetail(ctx, rowOrdinal)
	report.Steps = append(report.Steps, openResult)
	if view == nil {
		log.Warn("record skipped: detail view could not be opened",
			zap.String("reason", openResult.Reason))
		return report
	}
	report.Processed = true

	// CLOSE_DETAIL is a guaranteed-release step: it runs whatever the
	// other steps did, and tolerates an already-closed view.
	defer func() {
		closeResult := model.StepResult{Step: model.StepCloseDetail, OK: true}
		if err := view.Close(); err != nil {
			closeResult.OK = false
			closeResult.Reason = err.Error()
		}
		report.Steps = append(report.Steps, closeResult)
	}()

	if err := view.WaitReady(ctx, e.cfg.DetailWait); err != nil {
		log.Debug("detail ready wait failed, proceeding", zap.Error(err))
	}

	identifier, idResult := e.captureIdentifier(ctx, view, recordNumber)
	report.Radicado = identifier
	report.Steps = append(report.Steps, idResult)

	docPath, docResult := e.renderDocument(ctx, view, identifier)
	report.Document = docResult.OK
	report.Steps = append(report.Steps, docResult)

	attPath, attResult := e.fetchAttachment(ctx, view, identifier)
	report.Attachment = attResult.OK && attPath != ""
	report.Steps = append(report.Steps, attResult)

	rec, snapResult := e.captureSnapshot(ctx, view, identifier, recordNumber)
	report.Snapshot = snapResult.OK
	report.Steps = append(report.Steps, snapResult)

	if rec != nil {
		rec.DocumentPath = docPath
		rec.AttachmentPath = attPath
		report.Record = rec
	}

	log.Info("record extracted",
		zap.String("radicado", identifier),
		zap.Bool("document", report.Document),
		zap.Bool("attachment", report.Attachment),
		zap.Bool("snapshot", report.Snapshot),
	)
	return report
}

// openDetail tries each open strategy once, in order. The first one
// that yields a view wins.
func (e *Extractor) openDetail(ctx context.Context, rowOrdinal int) (browser.DetailView, model.StepResult) {
	result := model.StepResult{Step: model.StepOpenDetail}
	rowSel := e.profile.RowLinkSelector(rowOrdinal)

	for _, strat := range openStrategies {
		target := rowSel
		if strat == browser.OpenViaURL {
			href, ok, err := e.drv.Attribute(ctx, rowSel, "href")
			if err != nil || !ok || href == "" {
				e.log.Debug("row link has no usable href",
					zap.String("selector", rowSel), zap.Error(err))
				continue
			}
			target = href
		}

		view, err := e.drv.OpenDetail(ctx, strat, target)
		if err == nil && view != nil {
			result.OK = true
			result.Reason = string(strat)
			return view, result
		}
		e.log.Debug("open strategy failed, trying next",
			zap.String("strategy", string(strat)),
			zap.Error(err),
		)
		result.Reason = fmt.Sprintf("last strategy %s: %v", strat, err)
	}
	if result.Reason == "" {
		result.Reason = "no strategy yielded a detail view"
	}
	return nil, result
}

// captureIdentifier scans the profile's identifier strategies; first
// non-empty text wins. On a full miss it generates PQR_<n>_<ts>. The
// synthetic identifier is a documented default value, not an error:
// downstream hashing and dedup proceed normally with it.
func (e *Extractor) captureIdentifier(ctx context.Context, view browser.DetailView, recordNumber int) (string, model.StepResult) {
	result := model.StepResult{Step: model.StepCaptureID, OK: true}

	for _, sel := range e.profile.IdentifierStrategies {
		text, err := view.Text(ctx, sel)
		if err == nil && text != "" {
			return text, result
		}
	}

	synthetic := fmt.Sprintf("PQR_%d_%s", recordNumber, e.now().UTC().Format("20060102150405"))
	result.Reason = "identifier strategies exhausted, synthetic assigned"
	return synthetic, result
}

// renderDocument renders the detail view to PDF, falling back to a
// full-page screenshot when printing fails.
func (e *Extractor) renderDocument(ctx context.Context, view browser.DetailView, identifier string) (string, model.StepResult) {
	result := model.StepResult{Step: model.StepRenderDocument}

	pdf, err := view.RenderPDF(ctx)
	if err == nil && len(pdf) > 0 {
		path, saveErr := e.art.SaveDocument(identifier, pdf, "pdf")
		if saveErr == nil {
			result.OK = true
			return path, result
		}
		err = saveErr
	}
	e.log.Debug("pdf render failed, falling back to screenshot", zap.Error(err))

	img, imgErr := view.Screenshot(ctx)
	if imgErr == nil && len(img) > 0 {
		path, saveErr := e.art.SaveDocument(identifier, img, "png")
		if saveErr == nil {
			result.OK = true
			result.Reason = "screenshot fallback"
			return path, result
		}
		imgErr = saveErr
	}

	result.Reason = fmt.Sprintf("pdf: %v; screenshot: %v", err, imgErr)
	return "", result
}

// fetchAttachment reads the evidence field's displayed filename, then
// tries the profile's structural selectors to find the matching
// clickable element. An empty evidence field or no match is "no
// attachment", not an error. At most one attachment per record.
func (e *Extractor) fetchAttachment(ctx context.Context, view browser.DetailView, identifier string) (string, model.StepResult) {
	result := model.StepResult{Step: model.StepFetchAttachment}

	evidenceSel, ok := e.profile.SnapshotFields[e.profile.EvidenceField]
	if !ok {
		result.OK = true
		result.Reason = "no evidence field configured"
		return "", result
	}

	filename, err := view.Text(ctx, evidenceSel)
	if err != nil || filename == "" {
		result.OK = true
		result.Reason = "no attachment"
		return "", result
	}

	for _, sel := range e.profile.AttachmentSelectors(filename) {
		n, countErr := view.Count(ctx, sel)
		if countErr != nil || n == 0 {
			continue
		}
		dl, dlErr := view.FetchDownload(ctx, sel, e.cfg.DownloadTimeout)
		if dlErr != nil {
			e.log.Debug("download attempt failed, trying next selector",
				zap.String("selector", sel), zap.Error(dlErr))
			continue
		}
		name := dl.Filename
		if name == "" {
			name = filename
		}
		path, saveErr := e.art.SaveAttachment(identifier, name, dl.Data)
		if saveErr != nil {
			result.Reason = saveErr.Error()
			return "", result
		}
		result.OK = true
		return path, result
	}

	result.OK = true
	result.Reason = "no attachment"
	return "", result
}

// captureSnapshot reads the fixed field table (one selector per field)
// plus a capped scan of generic key/value table rows, then writes the
// ExtractedRecord snapshot to disk.
func (e *Extractor) captureSnapshot(ctx context.Context, view browser.DetailView, identifier string, recordNumber int) (*model.ExtractedRecord, model.StepResult) {
	result := model.StepResult{Step: model.StepCaptureSnapshot}

	fields := make(map[string]string, len(e.profile.SnapshotFields))
	for name, sel := range e.profile.SnapshotFields {
		text, err := view.Text(ctx, sel)
		if err != nil {
			continue
		}
		fields[name] = text
	}
	e.scanGenericTables(ctx, view, fields)

	sourceURL, err := view.URL(ctx)
	if err != nil {
		e.log.Debug("could not read detail url", zap.Error(err))
	}

	rec := &model.ExtractedRecord{
		Radicado:     identifier,
		RecordNumber: recordNumber,
		Fields:       fields,
		SourceURL:    sourceURL,
		Company:      e.profile.Name,
		ExtractedAt:  e.now().UTC(),
	}

	path, saveErr := e.art.SaveRecord(rec)
	if saveErr != nil {
		result.Reason = saveErr.Error()
		return nil, result
	}
	rec.SnapshotPath = path
	result.OK = true
	return rec, result
}

// scanGenericTables walks up to GenericTableCap tables and GenericRowCap
// rows each, collecting two-column rows as prefixed fields. Best effort:
// any miss just ends that table's scan.
func (e *Extractor) scanGenericTables(ctx context.Context, view browser.DetailView, fields map[string]string) {
	for t := 1; t <= e.cfg.GenericTableCap; t++ {
		tableSel := fmt.Sprintf("table:nth-of-type(%d)", t)
		n, err := view.Count(ctx, tableSel)
		if err != nil || n == 0 {
			return
		}
		for r := 1; r <= e.cfg.GenericRowCap; r++ {
			keySel := fmt.Sprintf("%s tr:nth-child(%d) td:nth-child(1)", tableSel, r)
			valSel := fmt.Sprintf("%s tr:nth-child(%d) td:nth-child(2)", tableSel, r)

			key, keyErr := view.Text(ctx, keySel)
			if keyErr != nil || key == "" {
				break
			}
			val, valErr := view.Text(ctx, valSel)
			if valErr != nil {
				continue
			}
			name := fmt.Sprintf("tabla%d_%s", t, normalizeFieldName(key))
			if _, exists := fields[name]; !exists {
				fields[name] = val
			}
		}
	}
}
