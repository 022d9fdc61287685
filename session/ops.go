package session

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/axview"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/recorder"
)

// record appends one action. Every recorded action except close carries its
// pre-action snapshot; an action whose capture failed is dropped with a log
// line rather than persisted bare.
func (p *Page) record(rec action.Record, snap *recorder.Snapshot, execErr error) {
	if p.rec == nil {
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	rec.Success = execErr == nil
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	if snap == nil && rec.Kind != action.KindClose {
		p.logger.Warn("action dropped from recording, snapshot capture failed",
			"kind", rec.Kind, "error", execErr)
		return
	}
	if err := p.rec.Append(rec, snap); err != nil {
		p.logger.Warn("record append failed", "kind", rec.Kind, "error", err)
	}
}

// buildView runs the accessibility builder and publishes the xpath map.
func (m *Manager) buildView(ctx context.Context, p *Page, scope string) (*axview.View, error) {
	v, err := axview.Build(ctx, p.pg, p.frames, axview.Options{Scope: scope, Logger: p.logger})
	if err != nil {
		return nil, err
	}
	p.cacheXPathMap(v.XPathMap)
	return v, nil
}

// snapFromView converts a built view into the recorder's snapshot shape.
func (m *Manager) snapFromView(ctx context.Context, p *Page, v *axview.View) *recorder.Snapshot {
	if p.rec == nil || v == nil {
		return nil
	}
	snap := &recorder.Snapshot{Structure: v.Simplified, XPathMap: v.XPathMap}
	if p.screenshot {
		if b, err := p.pg.Screenshot(ctx); err == nil {
			snap.Screenshot = b
		} else {
			p.logger.Warn("screenshot failed", "error", err)
		}
	}
	if p.debugAX {
		snap.AXTree = v.Raw
	}
	return snap
}

// Navigate drives the page to url and waits for quiescence.
func (m *Manager) Navigate(ctx context.Context, id, url string, timeoutMs int, description string) (string, error) {
	p, err := m.Get(id)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", browser.NewError(browser.KindBadRequest, "url is required")
	}
	if err := p.lock(); err != nil {
		return "", err
	}
	defer p.unlock()

	snap := m.snapshot(ctx, p)
	finalURL, navErr := p.pg.Navigate(ctx, url, browser.NavTimeout(timeoutMs, defaultNavTimeout))
	p.resetFramesIfNavigated()
	if navErr == nil {
		p.det.Wait(ctx, 0)
	}
	p.record(action.Record{
		Kind:        action.KindNavigate,
		URL:         url,
		Timeout:     timeoutMs,
		Description: description,
	}, snap, navErr)
	return finalURL, navErr
}

// NavigateBack, NavigateForward and Reload share the history-move shape.
func (m *Manager) NavigateBack(ctx context.Context, id, description string) (string, error) {
	return m.historyMove(ctx, id, description, action.KindNavigateBack, 0)
}

func (m *Manager) NavigateForward(ctx context.Context, id, description string) (string, error) {
	return m.historyMove(ctx, id, description, action.KindNavigateForward, 0)
}

func (m *Manager) Reload(ctx context.Context, id string, timeoutMs int) (string, error) {
	return m.historyMove(ctx, id, "", action.KindReload, timeoutMs)
}

func (m *Manager) historyMove(ctx context.Context, id, description, kind string, timeoutMs int) (string, error) {
	p, err := m.Get(id)
	if err != nil {
		return "", err
	}
	if err := p.lock(); err != nil {
		return "", err
	}
	defer p.unlock()

	snap := m.snapshot(ctx, p)
	timeout := browser.NavTimeout(timeoutMs, defaultNavTimeout)
	var url string
	var moveErr error
	switch kind {
	case action.KindNavigateBack:
		url, moveErr = p.pg.Back(ctx, timeout)
	case action.KindNavigateForward:
		url, moveErr = p.pg.Forward(ctx, timeout)
	default:
		url, moveErr = p.pg.Reload(ctx, timeout)
	}
	p.resetFramesIfNavigated()
	if moveErr == nil {
		p.det.Wait(ctx, 0)
	}
	p.record(action.Record{
		Kind:        kind,
		Timeout:     timeoutMs,
		Description: description,
	}, snap, moveErr)
	return url, moveErr
}

// ActXPath executes one interaction against an explicit xpath.
func (m *Manager) ActXPath(ctx context.Context, id, xpath, method string, args []string, description string) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if xpath == "" {
		return browser.NewError(browser.KindBadRequest, "xpath is required")
	}
	return m.act(ctx, p, xpath, "", method, args, description)
}

// ActEncodedID resolves the encoded id through the page's cached xpath map
// and executes against the resulting xpath.
func (m *Manager) ActEncodedID(ctx context.Context, id, encodedID, method string, args []string, description string) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if encodedID == "" {
		return browser.NewError(browser.KindBadRequest, "encodedId is required")
	}
	xpath, err := p.XPathFor(encodedID)
	if err != nil {
		return err
	}
	return m.act(ctx, p, xpath, encodedID, method, args, description)
}

func (m *Manager) act(ctx context.Context, p *Page, xpath, encodedID, method string, args []string, description string) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	snap := m.snapshot(ctx, p)
	execErr := action.Execute(ctx, p.pg, p.det, action.Request{
		XPath:  xpath,
		Method: method,
		Args:   args,
	})
	p.record(action.Record{
		Kind:        action.KindAct,
		XPath:       xpath,
		EncodedID:   encodedID,
		Method:      method,
		Args:        args,
		Description: description,
	}, snap, execErr)
	return execErr
}

// Wait blocks until the page settles or the timeout elapses. The deadline
// itself is not an error.
func (m *Manager) Wait(ctx context.Context, id string, timeoutMs int, description string) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	snap := m.snapshot(ctx, p)
	p.det.Wait(ctx, time.Duration(timeoutMs)*time.Millisecond)
	p.record(action.Record{
		Kind:        action.KindWait,
		Timeout:     timeoutMs,
		Description: description,
	}, snap, nil)
	return nil
}

// Condition matches a regex against the current outline.
func (m *Manager) Condition(ctx context.Context, id, pattern, flags, description string) (bool, error) {
	re, err := compilePattern(pattern, flags)
	if err != nil {
		return false, err
	}
	p, err := m.Get(id)
	if err != nil {
		return false, err
	}
	if err := p.lock(); err != nil {
		return false, err
	}
	defer p.unlock()

	v, err := m.buildView(ctx, p, "")
	if err != nil {
		return false, err
	}
	matched := re.MatchString(v.Simplified)
	p.record(action.Record{
		Kind:        action.KindCondition,
		Pattern:     pattern,
		Flags:       flags,
		Matched:     &matched,
		Description: description,
	}, m.snapFromView(ctx, p, v), nil)
	return matched, nil
}

// compilePattern maps JS-style regex flags onto Go's inline flag syntax.
// g and y have no Go equivalent and are dropped.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, browser.NewError(browser.KindBadRequest, "pattern is required")
	}
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'y', 'u':
			// no-op under Go's regexp
		default:
			return nil, browser.NewError(browser.KindBadRequest, "unsupported regex flag %q", string(f))
		}
	}
	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, browser.WrapError(browser.KindBadRequest, err, "compile pattern")
	}
	return re, nil
}

// StructureResult is the /structure read.
type StructureResult struct {
	Structure      string `json:"structure"`
	HTMLPath       string `json:"htmlPath,omitempty"`
	ActionsPath    string `json:"actionsPath,omitempty"`
	ConsoleLogPath string `json:"consoleLogPath,omitempty"`
}

// Structure builds the accessibility view, optionally scoped to a selector,
// caches the xpath map and (when recording) archives the page HTML.
func (m *Manager) Structure(ctx context.Context, id, selector string) (StructureResult, error) {
	p, err := m.Get(id)
	if err != nil {
		return StructureResult{}, err
	}
	if err := p.lock(); err != nil {
		return StructureResult{}, err
	}
	defer p.unlock()

	v, err := m.buildView(ctx, p, selector)
	if err != nil {
		return StructureResult{}, err
	}
	res := StructureResult{
		Structure:      v.Simplified,
		ConsoleLogPath: p.ConsoleLogPath(),
	}
	if p.rec != nil {
		res.ActionsPath = p.rec.ActionsPath()
		if html, herr := p.pg.HTML(ctx); herr == nil {
			if path, werr := p.rec.WritePageHTML(time.Now().UnixMilli(), html); werr == nil {
				res.HTMLPath = path
			}
		}
	}
	return res, nil
}

// Screenshot returns current PNG bytes; not a recorded action.
func (m *Manager) Screenshot(ctx context.Context, id string) ([]byte, error) {
	p, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.unlock()
	return p.pg.Screenshot(ctx)
}

// HTML returns the page's current full HTML; not a recorded action. When the
// page records, the document is also archived as a <ts>-page.html artifact.
func (m *Manager) HTML(ctx context.Context, id string) (string, error) {
	p, err := m.Get(id)
	if err != nil {
		return "", err
	}
	if err := p.lock(); err != nil {
		return "", err
	}
	defer p.unlock()

	html, err := p.pg.HTML(ctx)
	if err != nil {
		return "", err
	}
	if p.rec != nil {
		if _, werr := p.rec.WritePageHTML(time.Now().UnixMilli(), html); werr != nil {
			p.logger.Warn("page html archive failed", "error", werr)
		}
	}
	return html, nil
}

// XPathLookup resolves an encoded id against the page's cached map.
func (m *Manager) XPathLookup(id, encodedID string) (string, error) {
	p, err := m.Get(id)
	if err != nil {
		return "", err
	}
	return p.XPathFor(encodedID)
}

// GetListHTML extracts the outerHTML of every match (or, byParent, of the
// matched parent's children) and archives them as <ts>-list.json.
func (m *Manager) GetListHTML(ctx context.Context, id, selector string, byParent bool) (listFile string, count int, err error) {
	p, err := m.Get(id)
	if err != nil {
		return "", 0, err
	}
	if selector == "" {
		return "", 0, browser.NewError(browser.KindBadRequest, "selector is required")
	}
	if err := p.lock(); err != nil {
		return "", 0, err
	}
	defer p.unlock()

	var items []string
	var qerr error
	if byParent {
		items, qerr = p.pg.ChildrenHTML(ctx, selector)
	} else {
		items, qerr = p.pg.OuterHTMLs(ctx, selector)
	}

	snap := m.snapshot(ctx, p)
	ts := time.Now().UnixMilli()
	kind := action.KindGetListHTML
	if byParent {
		kind = action.KindGetListHTMLByParent
	}
	rec := action.Record{Kind: kind, Selector: selector, Timestamp: ts, Count: len(items)}
	if qerr == nil && p.rec != nil {
		if name, werr := p.rec.WriteListFile(ts, items); werr == nil {
			rec.ListFile = name
			listFile = name
		} else {
			p.logger.Warn("list file write failed", "error", werr)
		}
	}
	p.record(rec, snap, qerr)
	return listFile, len(items), qerr
}

// GetElementHTML extracts one element's outerHTML and archives it as
// <ts>-element.html.
func (m *Manager) GetElementHTML(ctx context.Context, id, selector string) (elementFile string, err error) {
	p, err := m.Get(id)
	if err != nil {
		return "", err
	}
	if selector == "" {
		return "", browser.NewError(browser.KindBadRequest, "selector is required")
	}
	if err := p.lock(); err != nil {
		return "", err
	}
	defer p.unlock()

	html, qerr := p.pg.ElementHTML(ctx, selector)

	snap := m.snapshot(ctx, p)
	ts := time.Now().UnixMilli()
	rec := action.Record{Kind: action.KindGetElementHTML, Selector: selector, Timestamp: ts}
	if qerr == nil && p.rec != nil {
		if name, werr := p.rec.WriteElementFile(ts, html); werr == nil {
			rec.ElementFile = name
			elementFile = name
		} else {
			p.logger.Warn("element file write failed", "error", werr)
		}
	}
	p.record(rec, snap, qerr)
	return elementFile, qerr
}

// Base exposes the recordings base directory for the API layer's recording
// reads.
func (m *Manager) Base() string { return m.cfg.Base }
