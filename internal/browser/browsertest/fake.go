// Package browsertest provides scripted in-memory fakes for the browser
// capability, used by extractor and pagination engine tests.
package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Jeampauldev/ExtractorMerc-sub001/internal/browser"
)

// OpenCall records one OpenDetail invocation.
type OpenCall struct {
	Strategy browser.OpenStrategy
	Target   string
}

// FakeDetail is a scripted DetailView.
type FakeDetail struct {
	mu sync.Mutex

	Texts    map[string]string
	Attrs    map[string]map[string]string
	Counts   map[string]int
	PDF      []byte
	PDFErr   error
	Shot     []byte
	ShotErr  error
	DL       *browser.Download
	DLErr    error
	Location string

	CloseErr error
	Closed   bool
}

var _ browser.DetailView = (*FakeDetail)(nil)

func (d *FakeDetail) URL(context.Context) (string, error) { return d.Location, nil }

func (d *FakeDetail) WaitReady(context.Context, time.Duration) error { return nil }

func (d *FakeDetail) Text(_ context.Context, sel string) (string, error) {
	if v, ok := d.Texts[sel]; ok && v != "" {
		return v, nil
	}
	return "", eris.Errorf("fake: no visible element %s", sel)
}

func (d *FakeDetail) Attribute(_ context.Context, sel, name string) (string, bool, error) {
	if attrs, ok := d.Attrs[sel]; ok {
		v, present := attrs[name]
		return v, present, nil
	}
	return "", false, nil
}

func (d *FakeDetail) Count(_ context.Context, sel string) (int, error) {
	if n, ok := d.Counts[sel]; ok {
		return n, nil
	}
	if v, ok := d.Texts[sel]; ok && v != "" {
		return 1, nil
	}
	return 0, nil
}

func (d *FakeDetail) RenderPDF(context.Context) ([]byte, error) {
	if d.PDFErr != nil {
		return nil, d.PDFErr
	}
	return d.PDF, nil
}

func (d *FakeDetail) Screenshot(context.Context) ([]byte, error) {
	if d.ShotErr != nil {
		return nil, d.ShotErr
	}
	return d.Shot, nil
}

func (d *FakeDetail) FetchDownload(_ context.Context, sel string, _ time.Duration) (*browser.Download, error) {
	if d.DLErr != nil {
		return nil, d.DLErr
	}
	if d.DL == nil {
		return nil, eris.Errorf("fake: no download scripted for %s", sel)
	}
	return d.DL, nil
}

func (d *FakeDetail) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return d.CloseErr
}

// FakeDriver is a scripted Driver. OpenFunc decides what OpenDetail
// returns; when nil every open fails.
type FakeDriver struct {
	mu sync.Mutex

	Texts    map[string]string
	Attrs    map[string]map[string]string
	Counts   map[string]int
	EnabledM map[string]bool
	NavErr   error
	ClickErr map[string]error

	OpenFunc func(strat browser.OpenStrategy, target string) (browser.DetailView, error)

	Navigated []string
	Clicked   []string
	Opens     []OpenCall
	ClosedDrv bool
}

var _ browser.Driver = (*FakeDriver)(nil)

func (f *FakeDriver) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigated = append(f.Navigated, url)
	return f.NavErr
}

func (f *FakeDriver) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (f *FakeDriver) Text(_ context.Context, sel string) (string, error) {
	if v, ok := f.Texts[sel]; ok && v != "" {
		return v, nil
	}
	return "", eris.Errorf("fake: no visible element %s", sel)
}

func (f *FakeDriver) Attribute(_ context.Context, sel, name string) (string, bool, error) {
	if attrs, ok := f.Attrs[sel]; ok {
		v, present := attrs[name]
		return v, present, nil
	}
	return "", false, nil
}

func (f *FakeDriver) Count(_ context.Context, sel string) (int, error) {
	if n, ok := f.Counts[sel]; ok {
		return n, nil
	}
	if v, ok := f.Texts[sel]; ok && v != "" {
		return 1, nil
	}
	return 0, nil
}

func (f *FakeDriver) Enabled(_ context.Context, sel string) (bool, error) {
	if v, ok := f.EnabledM[sel]; ok {
		return v, nil
	}
	return false, nil
}

func (f *FakeDriver) Click(_ context.Context, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clicked = append(f.Clicked, sel)
	if err, ok := f.ClickErr[sel]; ok {
		return err
	}
	return nil
}

func (f *FakeDriver) OpenDetail(_ context.Context, strat browser.OpenStrategy, target string) (browser.DetailView, error) {
	f.mu.Lock()
	f.Opens = append(f.Opens, OpenCall{Strategy: strat, Target: target})
	f.mu.Unlock()
	if f.OpenFunc == nil {
		return nil, eris.New("fake: open not scripted")
	}
	return f.OpenFunc(strat, target)
}

func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClosedDrv = true
	return nil
}
