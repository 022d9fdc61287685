// Package settle decides when a page is quiet enough to act on. It watches
// the CDP network and page event stream and resolves a wait when no
// non-streaming request has been in flight for a quiet window, or at a hard
// deadline, whichever comes first.
package settle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults for the three clocks. The quiet window and stall policy are part
// of the service contract; the hard deadline is caller-overridable.
const (
	QuietWindow    = 500 * time.Millisecond
	DefaultTimeout = 30 * time.Second

	sweepInterval = 500 * time.Millisecond
	stallAge      = 2 * time.Second
)

// Timing overrides the clocks; zero fields keep the defaults. Used by tests.
type Timing struct {
	QuietWindow   time.Duration
	SweepInterval time.Duration
	StallAge      time.Duration
}

func (t *Timing) defaults() {
	if t.QuietWindow <= 0 {
		t.QuietWindow = QuietWindow
	}
	if t.SweepInterval <= 0 {
		t.SweepInterval = sweepInterval
	}
	if t.StallAge <= 0 {
		t.StallAge = stallAge
	}
}

type reqMeta struct {
	url   string
	start time.Time
}

// Detector tracks in-flight requests for one page. The event subscription is
// shared: waiters register a notification channel that is removed before
// their wait resolves, so nothing stays subscribed for a settled wait.
type Detector struct {
	logger *slog.Logger
	timing Timing

	mu         sync.Mutex
	inflight   map[string]reqMeta
	docByFrame map[string]string
	waiters    map[chan struct{}]struct{}
}

// New creates a detector. Call Attach to wire it to a page's event stream.
func New(logger *slog.Logger, timing Timing) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	timing.defaults()
	return &Detector{
		logger:     logger,
		timing:     timing,
		inflight:   make(map[string]reqMeta),
		docByFrame: make(map[string]string),
		waiters:    make(map[chan struct{}]struct{}),
	}
}

// onRequest records a new in-flight request. Streaming transports never
// settle, so they are ignored outright.
func (d *Detector) onRequest(requestID, url, resourceType, frameID string) {
	if resourceType == "WebSocket" || resourceType == "EventSource" {
		return
	}
	d.mu.Lock()
	d.inflight[requestID] = reqMeta{url: url, start: time.Now()}
	if resourceType == "Document" && frameID != "" {
		d.docByFrame[frameID] = requestID
	}
	d.mu.Unlock()
	d.notify()
}

// onDone removes a request on loadingFinished / loadingFailed /
// requestServedFromCache.
func (d *Detector) onDone(requestID string) {
	d.mu.Lock()
	_, had := d.inflight[requestID]
	delete(d.inflight, requestID)
	for frame, id := range d.docByFrame {
		if id == requestID {
			delete(d.docByFrame, frame)
		}
	}
	d.mu.Unlock()
	if had {
		d.notify()
	}
}

// onResponse treats data: URLs as completion; the browser never emits a
// loadingFinished for them.
func (d *Detector) onResponse(requestID, url string) {
	if len(url) >= 5 && url[:5] == "data:" {
		d.onDone(requestID)
	}
}

// onFrameStopped force-completes the frame's document request. Covers
// iframes whose network events never close.
func (d *Detector) onFrameStopped(frameID string) {
	d.mu.Lock()
	requestID, ok := d.docByFrame[frameID]
	d.mu.Unlock()
	if ok {
		d.onDone(requestID)
	}
}

// sweepStalled drops requests older than the stall age. Stalled requests
// never fail a settle; they are logged and forgotten.
func (d *Detector) sweepStalled() {
	now := time.Now()
	var dropped bool
	d.mu.Lock()
	for id, meta := range d.inflight {
		if now.Sub(meta.start) >= d.timing.StallAge {
			d.logger.Warn("settle: dropping stalled request",
				"url", meta.url, "age", now.Sub(meta.start))
			delete(d.inflight, id)
			for frame, rid := range d.docByFrame {
				if rid == id {
					delete(d.docByFrame, frame)
				}
			}
			dropped = true
		}
	}
	d.mu.Unlock()
	if dropped {
		d.notify()
	}
}

func (d *Detector) idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight) == 0
}

func (d *Detector) inflightCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// notify pokes every registered waiter; a waiter that has not drained its
// previous poke needs no second one.
func (d *Detector) notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ch := range d.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *Detector) addWaiter(ch chan struct{}) {
	d.mu.Lock()
	d.waiters[ch] = struct{}{}
	d.mu.Unlock()
}

func (d *Detector) removeWaiter(ch chan struct{}) {
	d.mu.Lock()
	delete(d.waiters, ch)
	d.mu.Unlock()
}

// Wait blocks until the page has been quiet for the quiet window, the hard
// deadline passes, or ctx is cancelled. It resolves exactly once and removes
// its registration before returning. Multiple concurrent waits coexist; each
// carries its own clocks over the shared bookkeeping.
func (d *Detector) Wait(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ch := make(chan struct{}, 1)
	d.addWaiter(ch)
	defer d.removeWaiter(ch)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	quiet := time.NewTimer(d.timing.QuietWindow)
	defer quiet.Stop()
	if !d.idle() {
		stopDrain(quiet)
	}

	sweep := time.NewTicker(d.timing.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.C:
			if n := d.inflightCount(); n > 0 {
				d.logger.Warn("settle: hard deadline reached with requests in flight", "inflight", n)
			}
			return

		case <-quiet.C:
			if d.idle() {
				return
			}

		case <-sweep.C:
			d.sweepStalled()

		case <-ch:
			if d.idle() {
				stopDrain(quiet)
				quiet.Reset(d.timing.QuietWindow)
			} else {
				stopDrain(quiet)
			}
		}
	}
}

// stopDrain stops a timer and drains a pending fire so Reset is safe.
func stopDrain(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
