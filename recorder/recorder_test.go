package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	base := t.TempDir()
	r, err := New(base, "page-1", "test page", "a description", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, base
}

func TestNew_RejectsPathTraversalIDs(t *testing.T) {
	base := t.TempDir()
	sentinel := filepath.Join(Root(base), "unrelated.txt")
	if err := os.MkdirAll(Root(base), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sentinel, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"", ".", "..", "../p1", "a/b", `a\b`} {
		r, err := New(base, id, "", "", nil)
		if browser.KindOf(err) != browser.KindBadRequest {
			t.Errorf("id %q: got %v", id, err)
			continue
		}
		if r != nil {
			t.Errorf("id %q: recorder handed out", id)
		}
	}

	// In particular, ".." must never resolve to the recordings root itself.
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("recordings root content touched: %v", err)
	}
}

func TestLoad_RejectsPathTraversalIDs(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(base, "actions.json")
	if err := os.WriteFile(outside, []byte(`{"id":"x","actions":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"..", "../..", "x/../y", ""} {
		if _, _, _, err := Load(base, id); browser.KindOf(err) != browser.KindBadRequest {
			t.Errorf("id %q: got %v", id, err)
		}
	}
}

func TestNew_SeedsActionsFile(t *testing.T) {
	r, _ := newTestRecorder(t)

	raw, err := os.ReadFile(r.ActionsPath())
	if err != nil {
		t.Fatalf("actions.json not written: %v", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("actions.json not valid JSON: %v", err)
	}
	if f.ID != "page-1" || f.Name != "test page" || len(f.Actions) != 0 {
		t.Errorf("seed mismatch: %+v", f)
	}
	// Pretty-printed with two-space indent.
	if !strings.Contains(string(raw), "\n  \"id\"") {
		t.Errorf("actions.json not indented: %q", raw)
	}
}

func TestNew_LoadsExistingLog(t *testing.T) {
	base := t.TempDir()
	r1, err := New(base, "p", "n", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r1.Append(action.Record{Kind: action.KindCreate, Timestamp: 100, Success: true}, nil); err != nil {
		t.Fatal(err)
	}

	r2, err := New(base, "p", "n", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(r2.Actions()); got != 1 {
		t.Fatalf("existing log not loaded: %d actions", got)
	}
}

func TestAppend_WritesSnapshotArtifacts(t *testing.T) {
	r, _ := newTestRecorder(t)

	rec := action.Record{Kind: action.KindNavigate, Timestamp: 1700000000001, URL: "https://example.com", Success: true}
	snap := &Snapshot{
		Structure:  "[0-1] RootWebArea: Example\n",
		XPathMap:   map[string]string{"0-1": "/html[1]"},
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
		PageHTML:   "<html></html>",
	}
	if err := r.Append(rec, snap); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := r.Actions()[0]
	if got.Structure != "1700000000001-structure.txt" ||
		got.XPathMap != "1700000000001-xpath.json" ||
		got.Screenshot != "1700000000001-screenshot.png" {
		t.Errorf("artifact filenames: %+v", got)
	}
	for _, name := range []string{got.Structure, got.XPathMap, got.Screenshot, "1700000000001-page.html"} {
		if _, err := os.Stat(filepath.Join(r.DataDir(), name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}
}

func TestAppend_CloseSkipsSnapshot(t *testing.T) {
	r, _ := newTestRecorder(t)
	snap := &Snapshot{Structure: "ignored"}
	if err := r.Append(action.Record{Kind: action.KindClose, Timestamp: 5, Success: true}, snap); err != nil {
		t.Fatal(err)
	}
	if got := r.Actions()[0]; got.Structure != "" {
		t.Errorf("close action carries artifacts: %+v", got)
	}
}

func TestAppend_InvokesOnAction(t *testing.T) {
	r, _ := newTestRecorder(t)
	var seen []string
	r.OnAction = func(rec action.Record) { seen = append(seen, rec.Kind) }

	r.Append(action.Record{Kind: action.KindCreate, Timestamp: 1, Success: true}, nil)
	r.Append(action.Record{Kind: action.KindWait, Timestamp: 2, Success: true}, nil)

	if len(seen) != 2 || seen[0] != "create" || seen[1] != "wait" {
		t.Errorf("onAction calls: %v", seen)
	}
}

func TestDeleteAction(t *testing.T) {
	r, _ := newTestRecorder(t)
	snap := &Snapshot{Structure: "s", XPathMap: map[string]string{"0-1": "/html[1]"}}
	r.Append(action.Record{Kind: action.KindCreate, Timestamp: 1, Success: true}, nil)
	r.Append(action.Record{Kind: action.KindAct, Timestamp: 2, Success: true}, snap)

	structure := r.Actions()[1].Structure
	if err := r.DeleteAction(1); err != nil {
		t.Fatalf("DeleteAction: %v", err)
	}
	if got := len(r.Actions()); got != 1 {
		t.Fatalf("action not removed: %d left", got)
	}
	if _, err := os.Stat(filepath.Join(r.DataDir(), structure)); !os.IsNotExist(err) {
		t.Errorf("artifact survived delete: %v", err)
	}

	if err := r.DeleteAction(7); browser.KindOf(err) != browser.KindBadRequest {
		t.Errorf("out-of-range index: got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.Append(action.Record{Kind: action.KindCreate, Timestamp: 1, Success: true}, nil)

	if err := r.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := os.Stat(r.Dir()); !os.IsNotExist(err) {
		t.Errorf("directory survived: %v", err)
	}
}

func TestListAndLoad(t *testing.T) {
	base := t.TempDir()
	r, err := New(base, "p1", "first", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Append(action.Record{Kind: action.KindCreate, Timestamp: 10, Success: true}, nil)
	r.Append(action.Record{Kind: action.KindClose, Timestamp: 20, Success: true}, nil)

	// A stray file at the root must not break the scan.
	os.WriteFile(filepath.Join(Root(base), "notes.txt"), []byte("x"), 0o644)

	sums, err := List(base)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("want 1 summary, got %d", len(sums))
	}
	s := sums[0]
	if s.ID != "p1" || s.ActionsCount != 2 || s.LastActionKind != "close" || s.CreatedAt != 10 {
		t.Errorf("summary mismatch: %+v", s)
	}

	f, dir, dataDir, err := Load(base, "p1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.ID != "p1" || len(f.Actions) != 2 {
		t.Errorf("loaded file mismatch: %+v", f)
	}
	if dir == "" || dataDir != filepath.Join(dir, "data") {
		t.Errorf("paths mismatch: %q %q", dir, dataDir)
	}

	if _, _, _, err := Load(base, "missing"); browser.KindOf(err) != browser.KindRecordingNotFound {
		t.Errorf("missing recording: got %v", err)
	}
}

func TestList_EmptyRootIsNotAnError(t *testing.T) {
	sums, err := List(t.TempDir())
	if err != nil || sums != nil {
		t.Errorf("empty root: %v, %v", sums, err)
	}
}

func TestConsoleLog(t *testing.T) {
	r, _ := newTestRecorder(t)
	cl, err := r.OpenConsoleLog(42)
	if err != nil {
		t.Fatalf("OpenConsoleLog: %v", err)
	}
	cl.Write("log", "hello", "")
	cl.Write("error", "boom", "at foo (app.js:1)")
	cl.PageError("Uncaught TypeError", "at bar (app.js:9)")
	if err := cl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Writes after close are dropped, not a panic.
	cl.Write("log", "late", "")

	raw, err := os.ReadFile(cl.Path())
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)
	for _, want := range []string{"[LOG] hello", "[ERROR] boom", "at foo (app.js:1)", "[PAGE-ERROR] Uncaught TypeError", "at bar (app.js:9)"} {
		if !strings.Contains(out, want) {
			t.Errorf("console log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "late") {
		t.Errorf("write after close landed: %s", out)
	}
}
