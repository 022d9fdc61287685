// Package session is the page manager: it owns the live page set, wires the
// driver, frame registry, settle detector and recorder per page, serializes
// operations, and fans action events out to the broadcaster.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/frameid"
	"github.com/hazyhaar/simplepage/recorder"
	"github.com/hazyhaar/simplepage/settle"
)

// Config tunes the manager.
type Config struct {
	// Base is the directory under which <base>/simplepage/<pageId>/ lives.
	Base string

	// Screenshots enables per-action screenshot artifacts.
	Screenshots bool

	// DebugAXTree additionally persists the raw accessibility nodes per
	// snapshot.
	DebugAXTree bool

	Logger *slog.Logger
}

// Manager owns the live pages of one browser context.
type Manager struct {
	cfg Config
	br  *browser.Manager
	log *slog.Logger

	mu    sync.RWMutex
	pages map[string]*Page

	emu     sync.RWMutex
	onEvent func(typ string, data any)
}

func NewManager(br *browser.Manager, cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, br: br, log: log, pages: make(map[string]*Page)}
}

// OnEvent installs the broadcaster hook. Events: page-created, page-closed,
// action-recorded. Delivery is synchronous; the hook must not block.
func (m *Manager) OnEvent(fn func(typ string, data any)) {
	m.emu.Lock()
	m.onEvent = fn
	m.emu.Unlock()
}

func (m *Manager) emit(typ string, data any) {
	m.emu.RLock()
	fn := m.onEvent
	m.emu.RUnlock()
	if fn != nil {
		fn(typ, data)
	}
}

// PageInfo is the REST shape of a live page.
type PageInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	URL            string    `json:"url"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	ConsoleLogPath string    `json:"consoleLogPath,omitempty"`
}

// CreateRequest is the payload for opening a new page.
type CreateRequest struct {
	Name          string
	URL           string
	Description   string
	TimeoutMs     int
	RecordActions bool
	Screenshots   *bool // nil = service default
}

const (
	defaultCreateTimeout = 10 * time.Second
	defaultNavTimeout    = 3 * time.Second
)

// CreatePage opens a driver page, initializes it (event streams, helper
// script, selector engine, console capture, recorder) and performs the
// initial navigation. The create action is emitted post-init so its snapshot
// works.
func (m *Manager) CreatePage(ctx context.Context, req CreateRequest) (PageInfo, error) {
	if req.URL == "" {
		return PageInfo{}, browser.NewError(browser.KindBadRequest, "url is required")
	}

	// The page outlives this request. Everything page-scoped (the stored
	// driver page, the detector's event feed, console streams) binds to
	// pageCtx, cancelled on close; the request ctx only bounds individual
	// driver calls.
	pageCtx, cancel := context.WithCancel(context.Background())
	pg, err := m.br.NewPage(pageCtx)
	if err != nil {
		cancel()
		return PageInfo{}, err
	}

	p := &Page{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
		pg:          pg,
		frames:      frameid.NewRegistry(),
		cancel:      cancel,
		screenshot:  m.cfg.Screenshots,
		debugAX:     m.cfg.DebugAXTree,
	}
	if req.Screenshots != nil {
		p.screenshot = *req.Screenshots
	}
	p.logger = m.log.With("page", p.ID)
	p.det = settle.New(p.logger, settle.Timing{})
	p.det.Attach(pageCtx, pg.Rod())
	p.topFrame = pg.FrameID()

	if err := m.initPage(ctx, pageCtx, p, req.RecordActions); err != nil {
		cancel()
		_ = pg.Close()
		return PageInfo{}, err
	}

	m.mu.Lock()
	m.pages[p.ID] = p
	m.mu.Unlock()

	info := m.pageInfo(p, false)
	// page-created broadcast is suppressed for non-recording pages (replay
	// opens those and subscribers only care about recorded sessions).
	if p.rec != nil {
		m.emit("page-created", info)
	}

	p.record(action.Record{
		Kind:        action.KindCreate,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Timeout:     req.TimeoutMs,
	}, m.snapshot(ctx, p), nil)

	timeout := browser.NavTimeout(req.TimeoutMs, defaultCreateTimeout)
	if _, err := pg.Navigate(ctx, req.URL, timeout); err != nil {
		p.logger.Warn("initial navigation failed", "url", req.URL, "error", err)
	}
	p.resetFramesIfNavigated()
	p.det.Wait(ctx, 0)

	return m.pageInfo(p, false), nil
}

func (m *Manager) initPage(ctx, pageCtx context.Context, p *Page, record bool) error {
	browser.RegisterSelectorEngine("attr", "data-testid")
	if err := p.pg.InjectHelper(ctx); err != nil {
		return err
	}

	if record {
		rec, err := recorder.New(m.cfg.Base, p.ID, p.Name, p.Description, p.logger)
		if err != nil {
			return err
		}
		p.rec = rec
		rec.OnAction = func(a action.Record) {
			m.emit("action-recorded", map[string]any{"pageId": p.ID, "action": a})
		}

		cl, err := rec.OpenConsoleLog(time.Now().UnixMilli())
		if err != nil {
			p.logger.Warn("console log unavailable", "error", err)
		} else {
			p.console = cl
			p.pg.OnConsole(pageCtx, func(e browser.ConsoleEntry) {
				if e.Level == "page-error" {
					cl.PageError(e.Text, e.Stack)
					return
				}
				cl.Write(e.Level, e.Text, e.Stack)
			})
		}
	}
	return nil
}

func (m *Manager) pageInfo(p *Page, withTitle bool) PageInfo {
	info := PageInfo{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		URL:            p.pg.URL(),
		CreatedAt:      p.CreatedAt,
		ConsoleLogPath: p.ConsoleLogPath(),
	}
	if withTitle {
		if t, err := p.pg.Title(); err == nil {
			info.Title = t
		}
	}
	return info
}

// Get returns a live page or PageNotFound.
func (m *Manager) Get(id string) (*Page, error) {
	m.mu.RLock()
	p, ok := m.pages[id]
	m.mu.RUnlock()
	if !ok {
		return nil, browser.NewError(browser.KindPageNotFound, "page %s", id)
	}
	return p, nil
}

// ListPages summarizes the live page set, oldest first.
func (m *Manager) ListPages() []PageInfo {
	m.mu.RLock()
	out := make([]PageInfo, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, m.pageInfo(p, false))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PageDetail is the single-page read, including the title.
func (m *Manager) PageDetail(id string) (PageInfo, error) {
	p, err := m.Get(id)
	if err != nil {
		return PageInfo{}, err
	}
	return m.pageInfo(p, true), nil
}

// ClosePage records the close, releases the driver page and drops the state.
// The on-disk recording survives.
func (m *Manager) ClosePage(ctx context.Context, id string) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	p.record(action.Record{Kind: action.KindClose}, nil, nil)
	p.closed.Store(true)
	if p.console != nil {
		_ = p.console.Close()
	}
	p.cancel()
	if err := p.pg.Close(); err != nil {
		p.logger.Warn("driver close failed", "error", err)
	}

	m.mu.Lock()
	delete(m.pages, id)
	m.mu.Unlock()

	m.emit("page-closed", map[string]string{"id": id})
	return nil
}

// DeleteAllRecords removes the page's recording directory and, when the page
// is still live, closes and forgets it.
func (m *Manager) DeleteAllRecords(ctx context.Context, id string) error {
	m.mu.Lock()
	p, live := m.pages[id]
	if live {
		delete(m.pages, id)
	}
	m.mu.Unlock()

	if live {
		p.opMu.Lock()
		p.closed.Store(true)
		if p.console != nil {
			_ = p.console.Close()
		}
		p.cancel()
		if err := p.pg.Close(); err != nil {
			p.logger.Warn("driver close failed", "error", err)
		}
		p.opMu.Unlock()
		m.emit("page-closed", map[string]string{"id": id})
		if p.rec != nil {
			return p.rec.DeleteAll()
		}
	}

	rec, err := recorder.New(m.cfg.Base, id, "", "", m.log)
	if err != nil {
		return err
	}
	return rec.DeleteAll()
}

// DeleteAction removes one recorded action and its artifacts from a live
// page's recording.
func (m *Manager) DeleteAction(id string, idx int) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if p.rec == nil {
		return browser.NewError(browser.KindRecordingNotFound, "page %s records nothing", id)
	}
	return p.rec.DeleteAction(idx)
}

// Health reports the live page count and driver connectivity.
func (m *Manager) Health() (pages int, browserConnected bool) {
	m.mu.RLock()
	pages = len(m.pages)
	m.mu.RUnlock()
	return pages, m.br.Connected()
}

// snapshot captures the accessibility view and optional screenshot for the
// recorder, and publishes the xpath map on the page. A failed capture is
// logged and yields nil; the caller decides whether to record without it.
func (m *Manager) snapshot(ctx context.Context, p *Page) *recorder.Snapshot {
	if p.rec == nil {
		return nil
	}
	v, err := m.buildView(ctx, p, "")
	if err != nil {
		p.logger.Warn("snapshot capture failed", "error", err)
		return nil
	}
	return m.snapFromView(ctx, p, v)
}
