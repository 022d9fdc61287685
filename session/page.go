package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/frameid"
	"github.com/hazyhaar/simplepage/recorder"
	"github.com/hazyhaar/simplepage/settle"
)

// maxQueueDepth bounds how many operations may queue behind a page's lock
// before new requests are rejected with Busy.
const maxQueueDepth = 16

// Page is the live state of one managed browser page. All operations are
// serialized through the per-page lock; the manager is the only mutator.
type Page struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time

	pg      *browser.Page
	frames  *frameid.Registry
	det     *settle.Detector
	rec     *recorder.Recorder // nil when recording is disabled
	console *recorder.ConsoleLog
	cancel  context.CancelFunc // stops console and event streams

	topFrame   string
	screenshot bool
	debugAX    bool
	logger     *slog.Logger

	opMu   sync.Mutex
	queued atomic.Int32
	closed atomic.Bool

	xmu      sync.Mutex
	xpathMap map[string]string
}

// lock acquires the page's operation lock, rejecting with Busy when the
// queue is already at depth.
func (p *Page) lock() error {
	if p.queued.Add(1) > maxQueueDepth {
		p.queued.Add(-1)
		return browser.NewError(browser.KindBusy, "page %s queue full", p.ID)
	}
	p.opMu.Lock()
	if p.closed.Load() {
		p.opMu.Unlock()
		p.queued.Add(-1)
		return browser.NewError(browser.KindPageNotFound, "page %s is closed", p.ID)
	}
	return nil
}

func (p *Page) unlock() {
	p.opMu.Unlock()
	p.queued.Add(-1)
}

// cacheXPathMap publishes the snapshot's map; acting by encoded id resolves
// against the most recent snapshot taken for this page.
func (p *Page) cacheXPathMap(m map[string]string) {
	p.xmu.Lock()
	p.xpathMap = m
	p.xmu.Unlock()
}

// XPathFor resolves an encoded id through the cached map.
func (p *Page) XPathFor(encodedID string) (string, error) {
	p.xmu.Lock()
	defer p.xmu.Unlock()
	if p.xpathMap == nil {
		return "", browser.NewError(browser.KindXPathMapNotCached,
			"no structure snapshot taken for page %s yet", p.ID)
	}
	xp, ok := p.xpathMap[encodedID]
	if !ok {
		return "", browser.NewError(browser.KindNoXPathForEncodedID,
			"encoded id %s not in the cached snapshot", encodedID)
	}
	return xp, nil
}

// ConsoleLogPath is the on-disk console stream, when recording.
func (p *Page) ConsoleLogPath() string {
	if p.console == nil {
		return ""
	}
	return p.console.Path()
}

// resetFramesIfNavigated re-seeds the frame registry when a navigation
// produced a new top-frame id. Encoded ids are intra-snapshot currency;
// ordinals must not leak across documents.
func (p *Page) resetFramesIfNavigated() {
	tf := p.pg.FrameID()
	if tf != p.topFrame {
		p.frames.Reset()
		p.topFrame = tf
		p.cacheXPathMap(nil)
	}
}
