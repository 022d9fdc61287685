package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page wraps a rod page with the surfaces the control plane needs: typed
// navigation, evaluation, screenshots, dialog arming, and the CDP session
// the accessibility builder and the settle detector subscribe to.
type Page struct {
	rod    *rod.Page
	logger *slog.Logger
}

func newPage(rp *rod.Page, logger *slog.Logger) *Page {
	if logger == nil {
		logger = slog.Default()
	}
	return &Page{rod: rp, logger: logger}
}

// Rod exposes the underlying rod page for CDP-level consumers (axview,
// settle). Interaction primitives should go through the typed surface.
func (p *Page) Rod() *rod.Page { return p.rod }

// FrameID returns the page's top frame id.
func (p *Page) FrameID() string { return string(p.rod.FrameID) }

// Navigate drives the page to url and waits for domcontentloaded. The wait
// tolerates a timeout (slow pages settle later via the quiescence detector);
// the navigation call itself does not.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) (string, error) {
	pg := p.rod.Context(ctx).Timeout(timeout)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return "", Translate(err, "navigate "+url)
	}
	wait()
	return p.URL(), nil
}

// Back navigates one entry back in the page history.
func (p *Page) Back(ctx context.Context, timeout time.Duration) (string, error) {
	pg := p.rod.Context(ctx).Timeout(timeout)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.NavigateBack(); err != nil {
		return "", Translate(err, "navigate back")
	}
	wait()
	return p.URL(), nil
}

// Forward navigates one entry forward in the page history.
func (p *Page) Forward(ctx context.Context, timeout time.Duration) (string, error) {
	pg := p.rod.Context(ctx).Timeout(timeout)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.NavigateForward(); err != nil {
		return "", Translate(err, "navigate forward")
	}
	wait()
	return p.URL(), nil
}

// Reload reloads the page.
func (p *Page) Reload(ctx context.Context, timeout time.Duration) (string, error) {
	pg := p.rod.Context(ctx).Timeout(timeout)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Reload(); err != nil {
		return "", Translate(err, "reload")
	}
	wait()
	return p.URL(), nil
}

// URL returns the page's current URL. Best-effort: errors yield "".
func (p *Page) URL() string {
	info, err := p.rod.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns the page title.
func (p *Page) Title() (string, error) {
	info, err := p.rod.Info()
	if err != nil {
		return "", Translate(err, "page info")
	}
	return info.Title, nil
}

// HTML returns the full serialised document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	h, err := p.rod.Context(ctx).HTML()
	if err != nil {
		return "", Translate(err, "page html")
	}
	return h, nil
}

// Screenshot captures the viewport as PNG bytes.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := p.rod.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, Translate(err, "screenshot")
	}
	return b, nil
}

// Eval runs a JS function expression in the page and returns its JSON value.
func (p *Page) Eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := p.rod.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, Translate(err, "evaluate")
	}
	return res, nil
}

// WaitForTimeout sleeps in page time; cancellable through ctx.
func (p *Page) WaitForTimeout(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return Translate(ctx.Err(), "wait")
	}
}

// SetInputFiles attaches local files to the file input located by xpath.
func (p *Page) SetInputFiles(ctx context.Context, xpath string, paths []string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if err := el.SetFiles(paths); err != nil {
		return Translate(err, "set input files")
	}
	return nil
}

// DialogResult carries the outcome of an armed dialog handler.
type DialogResult struct {
	Fired   bool
	Message string
}

// ArmDialog installs a one-shot dialog handler before an action expected to
// trigger one. The returned wait func blocks until the dialog is handled or
// the deadline passes; the latter reports DialogNotFired.
func (p *Page) ArmDialog(accept bool, promptText string, deadline time.Duration) func() (*DialogResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	pg := p.rod.Context(ctx)
	wait, handle := pg.HandleDialog()

	done := make(chan *DialogResult, 1)
	go func() {
		e := wait()
		if ctx.Err() != nil {
			// Deadline passed before any dialog opened.
			return
		}
		err := handle(&proto.PageHandleJavaScriptDialog{Accept: accept, PromptText: promptText})
		if err != nil {
			p.logger.Warn("browser: handle dialog", "error", err)
		}
		done <- &DialogResult{Fired: true, Message: e.Message}
	}()

	return func() (*DialogResult, error) {
		defer cancel()
		select {
		case res := <-done:
			return res, nil
		case <-ctx.Done():
			return nil, NewError(KindDialogNotFired, "no dialog surfaced within %s", deadline)
		}
	}
}

// Close closes the page target.
func (p *Page) Close() error {
	if err := p.rod.Close(); err != nil {
		return Translate(err, "close page")
	}
	return nil
}
