package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config tunes the chromedp driver.
type Config struct {
	Headless      bool          `yaml:"headless" mapstructure:"headless"`
	NavTimeout    time.Duration `yaml:"nav_timeout" mapstructure:"nav_timeout"`
	StepTimeout   time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	DownloadDir   string        `yaml:"download_dir" mapstructure:"download_dir"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	ChromeBinPath string        `yaml:"chrome_bin" mapstructure:"chrome_bin"`
}

// ChromeDriver implements Driver on a headless Chrome via chromedp.
type ChromeDriver struct {
	cfg Config
	log *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	pageCtx     context.Context
	pageCancel  context.CancelFunc
}

// NewChrome starts a Chrome instance and returns a driver bound to one
// primary tab. JavaScript dialogs on the primary tab are auto-accepted.
func NewChrome(cfg Config) (*ChromeDriver, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "browser: create download dir %s", cfg.DownloadDir)
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ChromeBinPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		cfg:         cfg,
		log:         zap.L().With(zap.String("component", "browser.chrome")),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		pageCtx:     pageCtx,
		pageCancel:  pageCancel,
	}
	autoAcceptDialogs(pageCtx)

	// Start the browser eagerly so a missing Chrome binary fails fast.
	if err := chromedp.Run(pageCtx); err != nil {
		allocCancel()
		return nil, eris.Wrap(err, "browser: start chrome")
	}
	return d, nil
}

func autoAcceptDialogs(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
					zap.L().Debug("browser: dialog accept failed", zap.Error(err))
				}
			}()
		}
	})
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.NavTimeout)
	defer cancel()
	err := chromedp.Run(d.bind(ctx),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	return eris.Wrapf(err, "browser: navigate %s", url)
}

func (d *ChromeDriver) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(d.bind(ctx), chromedp.WaitVisible(sel, chromedp.ByQuery))
	return eris.Wrapf(err, "browser: wait visible %s", sel)
}

func (d *ChromeDriver) Text(ctx context.Context, sel string) (string, error) {
	return elementText(d.bind(d.step(ctx)), sel)
}

func (d *ChromeDriver) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	return elementAttribute(d.bind(d.step(ctx)), sel, name)
}

func (d *ChromeDriver) Count(ctx context.Context, sel string) (int, error) {
	return elementCount(d.bind(d.step(ctx)), sel)
}

func (d *ChromeDriver) Enabled(ctx context.Context, sel string) (bool, error) {
	return elementEnabled(d.bind(d.step(ctx)), sel)
}

func (d *ChromeDriver) Click(ctx context.Context, sel string) error {
	err := chromedp.Run(d.bind(d.step(ctx)), chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
	return eris.Wrapf(err, "browser: click %s", sel)
}

// OpenDetail opens a record detail view in a new tab. Click strategies
// wait for the browser to announce the new target; OpenViaURL creates
// the tab directly.
func (d *ChromeDriver) OpenDetail(ctx context.Context, strat OpenStrategy, tgt string) (DetailView, error) {
	switch strat {
	case OpenViaURL:
		return d.openURL(ctx, tgt)
	case OpenViaContextMenu, OpenViaModifierClick:
		return d.openByClick(ctx, strat, tgt)
	default:
		return nil, eris.Errorf("browser: unknown open strategy %q", strat)
	}
}

func (d *ChromeDriver) openURL(ctx context.Context, url string) (DetailView, error) {
	tabCtx, tabCancel := chromedp.NewContext(d.pageCtx)
	autoAcceptDialogs(tabCtx)

	navCtx, cancel := context.WithTimeout(ctx, d.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(bindContext(tabCtx, navCtx),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		tabCancel()
		return nil, eris.Wrapf(err, "browser: open detail url %s", url)
	}
	return d.newDetail(tabCtx, tabCancel), nil
}

func (d *ChromeDriver) openByClick(ctx context.Context, strat OpenStrategy, sel string) (DetailView, error) {
	ch := chromedp.WaitNewTarget(d.pageCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.URL != ""
	})

	mouseOpt := chromedp.ButtonType(input.Right)
	if strat == OpenViaModifierClick {
		mouseOpt = chromedp.ButtonModifiers(input.ModifierCtrl)
	}
	// Secondary-button / modifier click on the resolved row node; the
	// portal opens the record in a new window for either gesture.
	action := chromedp.QueryAfter(sel, func(ctx context.Context, execCtx runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return eris.Errorf("browser: no node for %s", sel)
		}
		return chromedp.MouseClickNode(nodes[0], mouseOpt).Do(ctx)
	}, chromedp.ByQuery, chromedp.NodeVisible)

	clickCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	defer cancel()
	if err := chromedp.Run(bindContext(d.pageCtx, clickCtx), action); err != nil {
		return nil, eris.Wrapf(err, "browser: %s on %s", strat, sel)
	}

	select {
	case id := <-ch:
		tabCtx, tabCancel := chromedp.NewContext(d.pageCtx, chromedp.WithTargetID(id))
		autoAcceptDialogs(tabCtx)
		return d.newDetail(tabCtx, tabCancel), nil
	case <-clickCtx.Done():
		return nil, eris.Errorf("browser: %s on %s yielded no new view", strat, sel)
	}
}

func (d *ChromeDriver) newDetail(tabCtx context.Context, cancel context.CancelFunc) *chromeDetail {
	return &chromeDetail{
		drv:    d,
		ctx:    tabCtx,
		cancel: cancel,
	}
}

func (d *ChromeDriver) Close() error {
	d.pageCancel()
	d.allocCancel()
	return nil
}

// step bounds a single element operation.
func (d *ChromeDriver) step(ctx context.Context) context.Context {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	// The deadline, not the cancel, bounds the operation; chromedp
	// releases resources when the deadline fires.
	_ = cancel
	return ctx
}

// bind ties the caller's deadline to the driver's primary tab.
func (d *ChromeDriver) bind(ctx context.Context) context.Context {
	return bindContext(d.pageCtx, ctx)
}

// chromeDetail implements DetailView on a secondary tab.
type chromeDetail struct {
	drv    *ChromeDriver
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (v *chromeDetail) URL(ctx context.Context) (string, error) {
	var loc string
	err := chromedp.Run(bindContext(v.ctx, v.drv.step(ctx)), chromedp.Location(&loc))
	return loc, eris.Wrap(err, "browser: detail location")
}

func (v *chromeDetail) WaitReady(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(bindContext(v.ctx, waitCtx), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil && waitCtx.Err() != nil {
		// Proceed with whatever rendered; the caller's sub-steps will
		// fail individually if the page is truly unusable.
		v.drv.log.Debug("detail view not ready before timeout, proceeding")
		return nil
	}
	return eris.Wrap(err, "browser: detail wait ready")
}

func (v *chromeDetail) Text(ctx context.Context, sel string) (string, error) {
	return elementText(bindContext(v.ctx, v.drv.step(ctx)), sel)
}

func (v *chromeDetail) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	return elementAttribute(bindContext(v.ctx, v.drv.step(ctx)), sel, name)
}

func (v *chromeDetail) Count(ctx context.Context, sel string) (int, error) {
	return elementCount(bindContext(v.ctx, v.drv.step(ctx)), sel)
}

func (v *chromeDetail) RenderPDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	runCtx, cancel := context.WithTimeout(ctx, v.drv.cfg.NavTimeout)
	defer cancel()
	err := chromedp.Run(bindContext(v.ctx, runCtx), chromedp.ActionFunc(func(ctx context.Context) error {
		var pdfErr error
		buf, _, pdfErr = page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			Do(ctx)
		return pdfErr
	}))
	return buf, eris.Wrap(err, "browser: print to pdf")
}

func (v *chromeDetail) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	runCtx, cancel := context.WithTimeout(ctx, v.drv.cfg.NavTimeout)
	defer cancel()
	err := chromedp.Run(bindContext(v.ctx, runCtx), chromedp.FullScreenshot(&buf, 90))
	return buf, eris.Wrap(err, "browser: full screenshot")
}

// FetchDownload clicks the selector and waits for the resulting browser
// download to complete, then reads the file back from the download dir.
func (v *chromeDetail) FetchDownload(ctx context.Context, sel string, timeout time.Duration) (*Download, error) {
	dlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	guidCh := make(chan string, 1)
	nameCh := make(chan string, 1)
	chromedp.ListenBrowser(v.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *browser.EventDownloadWillBegin:
			select {
			case nameCh <- e.SuggestedFilename:
			default:
			}
		case *browser.EventDownloadProgress:
			if e.State == browser.DownloadProgressStateCompleted {
				select {
				case guidCh <- e.GUID:
				default:
				}
			}
		}
	})

	err := chromedp.Run(bindContext(v.ctx, dlCtx),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(v.drv.cfg.DownloadDir).
			WithEventsEnabled(true),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: trigger download %s", sel)
	}

	var guid, suggested string
	for guid == "" {
		select {
		case guid = <-guidCh:
		case suggested = <-nameCh:
		case <-dlCtx.Done():
			return nil, eris.Errorf("browser: download timed out after %s", timeout)
		}
	}
	select {
	case suggested = <-nameCh:
	default:
	}

	path := filepath.Join(v.drv.cfg.DownloadDir, guid)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: read downloaded file %s", guid)
	}
	_ = os.Remove(path)

	if suggested == "" {
		suggested = guid
	}
	return &Download{Filename: suggested, Data: data}, nil
}

func (v *chromeDetail) Close() error {
	v.closeOnce.Do(func() {
		// Best effort; the tab may already be gone.
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := chromedp.Run(bindContext(v.ctx, closeCtx), page.Close()); err != nil {
			v.drv.log.Debug("detail close failed (already closed?)", zap.Error(err))
		}
		v.cancel()
	})
	return nil
}

// elementText reads trimmed inner text of the first match, erroring when
// nothing matches within the context deadline.
func elementText(ctx context.Context, sel string) (string, error) {
	var out string
	err := chromedp.Run(ctx, chromedp.Text(sel, &out, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return "", eris.Wrapf(err, "browser: text %s", sel)
	}
	return strings.TrimSpace(out), nil
}

func elementAttribute(ctx context.Context, sel, name string) (string, bool, error) {
	var val string
	var ok bool
	err := chromedp.Run(ctx, chromedp.AttributeValue(sel, name, &val, &ok, chromedp.ByQuery))
	if err != nil {
		return "", false, eris.Wrapf(err, "browser: attribute %s[%s]", sel, name)
	}
	return val, ok, nil
}

func elementCount(ctx context.Context, sel string) (int, error) {
	// Evaluate is cheaper than node resolution for a bare count.
	var n int
	err := chromedp.Run(ctx, chromedp.Evaluate(
		`document.querySelectorAll(`+jsString(sel)+`).length`, &n))
	if err != nil {
		return 0, eris.Wrapf(err, "browser: count %s", sel)
	}
	return n, nil
}

func elementEnabled(ctx context.Context, sel string) (bool, error) {
	var enabled bool
	expr := `(() => {
		const el = document.querySelector(` + jsString(sel) + `);
		if (!el) return false;
		if (el.disabled) return false;
		if (el.getAttribute("aria-disabled") === "true") return false;
		if (el.classList.contains("disabled")) return false;
		const style = window.getComputedStyle(el);
		return style.display !== "none" && style.visibility !== "hidden";
	})()`
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, &enabled))
	if err != nil {
		return false, eris.Wrapf(err, "browser: enabled %s", sel)
	}
	return enabled, nil
}

// jsString quotes a selector for safe embedding in an Evaluate expression.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// bindContext merges the tab context (chromedp target) with the caller's
// cancellation/deadline.
func bindContext(tabCtx, callerCtx context.Context) context.Context {
	ctx, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-callerCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
