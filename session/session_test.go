package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/recorder"
)

func TestCompilePattern(t *testing.T) {
	re, err := compilePattern("hello", "i")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !re.MatchString("[0-1] heading: HELLO world") {
		t.Error("case-insensitive flag not applied")
	}

	if _, err := compilePattern("a", "gi"); err != nil {
		t.Errorf("g flag should be dropped, got %v", err)
	}
	if _, err := compilePattern("a", "x"); browser.KindOf(err) != browser.KindBadRequest {
		t.Errorf("unknown flag: got %v", err)
	}
	if _, err := compilePattern("(", ""); browser.KindOf(err) != browser.KindBadRequest {
		t.Errorf("bad pattern: got %v", err)
	}
	if _, err := compilePattern("", ""); browser.KindOf(err) != browser.KindBadRequest {
		t.Errorf("empty pattern: got %v", err)
	}
}

func TestPage_XPathFor(t *testing.T) {
	p := &Page{ID: "p1", logger: slog.Default()}

	if _, err := p.XPathFor("0-1"); browser.KindOf(err) != browser.KindXPathMapNotCached {
		t.Errorf("uncached map: got %v", err)
	}

	p.cacheXPathMap(map[string]string{"0-1": "/html[1]"})
	xp, err := p.XPathFor("0-1")
	if err != nil || xp != "/html[1]" {
		t.Errorf("cached lookup: %q, %v", xp, err)
	}
	if _, err := p.XPathFor("0-99"); browser.KindOf(err) != browser.KindNoXPathForEncodedID {
		t.Errorf("missing id: got %v", err)
	}
}

func TestPage_LockRejectsWhenClosed(t *testing.T) {
	p := &Page{ID: "p1", logger: slog.Default()}
	p.closed.Store(true)
	if err := p.lock(); browser.KindOf(err) != browser.KindPageNotFound {
		t.Fatalf("closed page lock: got %v", err)
	}
}

func TestPage_LockQueueDepth(t *testing.T) {
	p := &Page{ID: "p1", logger: slog.Default()}

	// Hold the lock, then saturate the queue from other goroutines.
	if err := p.lock(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	acquired := make(chan struct{}, maxQueueDepth)
	release := make(chan struct{})
	for i := 0; i < maxQueueDepth-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.lock(); err != nil {
				return
			}
			acquired <- struct{}{}
			<-release
			p.unlock()
		}()
	}

	// Wait until all waiters are counted in the queue.
	for p.queued.Load() < int32(maxQueueDepth) {
		runtime.Gosched()
	}

	if err := p.lock(); browser.KindOf(err) != browser.KindBusy {
		t.Fatalf("full queue: got %v", err)
	}

	p.unlock()
	close(release)
	wg.Wait()
}

func TestRecord_DropsActionsWithoutSnapshot(t *testing.T) {
	rec, err := recorder.New(t.TempDir(), "p1", "n", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	p := &Page{ID: "p1", rec: rec, logger: slog.Default()}

	// No snapshot, no record: a bare entry would promise artifacts that were
	// never written. Success does not matter.
	p.record(action.Record{Kind: action.KindAct, Method: "click"}, nil, nil)
	p.record(action.Record{Kind: action.KindNavigate}, nil, browser.NewError(browser.KindTimeout, "nav"))
	if got := len(rec.Actions()); got != 0 {
		t.Fatalf("snapshot-less actions recorded: %d", got)
	}

	p.record(action.Record{Kind: action.KindAct, Method: "click"},
		&recorder.Snapshot{Structure: "[0-1] RootWebArea\n"}, nil)
	if got := len(rec.Actions()); got != 1 {
		t.Fatalf("action with snapshot not recorded: %d", got)
	}

	// close is the one kind that records without a snapshot.
	p.record(action.Record{Kind: action.KindClose}, nil, nil)
	if got := rec.Actions(); len(got) != 2 || got[1].Kind != action.KindClose {
		t.Fatalf("close not recorded: %+v", got)
	}
}

func TestDeleteAllRecords_RejectsTraversalID(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(recorder.Root(base), 0o755); err != nil {
		t.Fatal(err)
	}
	sentinel := filepath.Join(recorder.Root(base), "unrelated.txt")
	if err := os.WriteFile(sentinel, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil, Config{Base: base})
	for _, id := range []string{"..", "../..", "a/../b", ""} {
		if err := m.DeleteAllRecords(context.Background(), id); browser.KindOf(err) != browser.KindBadRequest {
			t.Errorf("id %q: got %v", id, err)
		}
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("recordings root wiped through a crafted id: %v", err)
	}
}

func TestManager_GetUnknownPage(t *testing.T) {
	m := NewManager(nil, Config{Base: t.TempDir()})
	if _, err := m.Get("nope"); browser.KindOf(err) != browser.KindPageNotFound {
		t.Fatalf("got %v", err)
	}
	if pages := m.ListPages(); len(pages) != 0 {
		t.Fatalf("fresh manager has pages: %v", pages)
	}
}
