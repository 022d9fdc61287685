// Package recorder owns the on-disk recording of a page: the actions.json
// log plus the data/ directory of per-action snapshot artifacts.
package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
)

// File is the persisted shape of actions.json.
type File struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Actions     []action.Record `json:"actions"`
}

// Snapshot carries the pre-action capture handed in by the page manager.
// Nil slices and empty strings mean the artifact is simply not written.
type Snapshot struct {
	Structure  string
	XPathMap   map[string]string
	Screenshot []byte
	PageHTML   string
	AXTree     any
}

// Recorder appends actions for one page. All filesystem writes happen under
// the page's own directory; the directory outlives the recorder.
type Recorder struct {
	dir     string
	dataDir string
	logger  *slog.Logger

	// OnAction is invoked after every successful append, with the record as
	// persisted. Used by the broadcaster.
	OnAction func(action.Record)

	mu   sync.Mutex
	file File
}

// Root returns the recordings root under base: <base>/simplepage.
func Root(base string) string {
	return filepath.Join(base, "simplepage")
}

// ValidID reports whether id is usable as a recording directory name. Ids
// arrive straight from URLs; anything that is not a single plain path
// element could resolve outside the recordings root.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// New opens (or seeds) the recording for pageID under <base>/simplepage.
// An existing actions.json is loaded so a restarted service appends rather
// than truncates.
func New(base, pageID, name, description string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !ValidID(pageID) {
		return nil, browser.NewError(browser.KindBadRequest, "invalid recording id %q", pageID)
	}
	dir := filepath.Join(Root(base), pageID)
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, browser.WrapError(browser.KindFilesystemError, err, "create recording dir")
	}

	r := &Recorder{dir: dir, dataDir: dataDir, logger: logger}
	path := r.ActionsPath()
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, &r.file); jerr != nil {
			return nil, browser.WrapError(browser.KindFilesystemError, jerr, "parse %s", path)
		}
	case os.IsNotExist(err):
		r.file = File{ID: pageID, Name: name, Description: description, Actions: []action.Record{}}
		if werr := r.flushLocked(); werr != nil {
			return nil, werr
		}
	default:
		return nil, browser.WrapError(browser.KindFilesystemError, err, "read %s", path)
	}
	return r, nil
}

func (r *Recorder) Dir() string         { return r.dir }
func (r *Recorder) DataDir() string     { return r.dataDir }
func (r *Recorder) ActionsPath() string { return filepath.Join(r.dir, "actions.json") }

// Actions returns a copy of the in-memory log.
func (r *Recorder) Actions() []action.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]action.Record, len(r.file.Actions))
	copy(out, r.file.Actions)
	return out
}

// Append writes the snapshot artifacts, fills the record's artifact
// filenames, pushes it into the log and rewrites actions.json whole. close
// records carry no snapshot.
func (r *Recorder) Append(rec action.Record, snap *Snapshot) error {
	if snap != nil && rec.Kind != action.KindClose {
		r.writeArtifacts(&rec, snap)
	}

	r.mu.Lock()
	r.file.Actions = append(r.file.Actions, rec)
	err := r.flushLocked()
	if err != nil {
		// Keep memory and disk consistent on failure.
		r.file.Actions = r.file.Actions[:len(r.file.Actions)-1]
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.OnAction != nil {
		r.OnAction(rec)
	}
	return nil
}

// writeArtifacts persists the snapshot trio plus the optional extras.
// Artifact failures degrade: the action is still recorded, the filename
// field stays empty and the failure is logged.
func (r *Recorder) writeArtifacts(rec *action.Record, snap *Snapshot) {
	ts := strconv.FormatInt(rec.Timestamp, 10)

	if snap.Structure != "" {
		rec.Structure = r.writeArtifact(ts+"-structure.txt", []byte(snap.Structure))
	}
	if snap.XPathMap != nil {
		raw, err := json.MarshalIndent(snap.XPathMap, "", "  ")
		if err == nil {
			rec.XPathMap = r.writeArtifact(ts+"-xpath.json", raw)
		}
	}
	if len(snap.Screenshot) > 0 {
		rec.Screenshot = r.writeArtifact(ts+"-screenshot.png", snap.Screenshot)
	}
	if snap.PageHTML != "" {
		r.writeArtifact(ts+"-page.html", []byte(snap.PageHTML))
	}
	if snap.AXTree != nil {
		if raw, err := json.MarshalIndent(snap.AXTree, "", "  "); err == nil {
			r.writeArtifact(ts+"-axtree.json", raw)
		}
	}
}

// writeArtifact writes one data/ file and returns its bare filename, or ""
// on failure.
func (r *Recorder) writeArtifact(name string, data []byte) string {
	if err := os.WriteFile(filepath.Join(r.dataDir, name), data, 0o644); err != nil {
		r.logger.Warn("recorder: artifact write failed", "file", name, "error", err)
		return ""
	}
	return name
}

// WriteListFile persists a list-extraction result as <ts>-list.json.
func (r *Recorder) WriteListFile(ts int64, items []string) (string, error) {
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", browser.WrapError(browser.KindInternal, err, "marshal list")
	}
	name := fmt.Sprintf("%d-list.json", ts)
	if err := os.WriteFile(filepath.Join(r.dataDir, name), raw, 0o644); err != nil {
		return "", browser.WrapError(browser.KindFilesystemError, err, "write %s", name)
	}
	return name, nil
}

// WritePageHTML archives the page's full HTML as <ts>-page.html and returns
// the absolute path.
func (r *Recorder) WritePageHTML(ts int64, html string) (string, error) {
	name := fmt.Sprintf("%d-page.html", ts)
	path := filepath.Join(r.dataDir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", browser.WrapError(browser.KindFilesystemError, err, "write %s", name)
	}
	return path, nil
}

// WriteElementFile persists an element-extraction result as <ts>-element.html.
func (r *Recorder) WriteElementFile(ts int64, html string) (string, error) {
	name := fmt.Sprintf("%d-element.html", ts)
	if err := os.WriteFile(filepath.Join(r.dataDir, name), []byte(html), 0o644); err != nil {
		return "", browser.WrapError(browser.KindFilesystemError, err, "write %s", name)
	}
	return name, nil
}

// DeleteAction removes the entry at idx and every artifact it references.
// Missing files are no-ops; a bad index is an error.
func (r *Recorder) DeleteAction(idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx < 0 || idx >= len(r.file.Actions) {
		return browser.NewError(browser.KindBadRequest, "action index %d out of range (0-%d)",
			idx, len(r.file.Actions)-1)
	}
	rec := r.file.Actions[idx]
	for _, name := range []string{rec.Screenshot, rec.Structure, rec.XPathMap, rec.ListFile, rec.ElementFile} {
		if name == "" {
			continue
		}
		if err := os.Remove(filepath.Join(r.dataDir, name)); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("recorder: artifact delete failed", "file", name, "error", err)
		}
	}
	r.file.Actions = append(r.file.Actions[:idx], r.file.Actions[idx+1:]...)
	return r.flushLocked()
}

// DeleteAll removes the page's whole directory.
func (r *Recorder) DeleteAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.RemoveAll(r.dir); err != nil {
		return browser.WrapError(browser.KindFilesystemError, err, "remove %s", r.dir)
	}
	r.file.Actions = nil
	return nil
}

// SetPostScripts attaches post-script sources to the action at idx.
func (r *Recorder) SetPostScripts(idx int, scripts []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.file.Actions) {
		return browser.NewError(browser.KindBadRequest, "action index %d out of range", idx)
	}
	r.file.Actions[idx].PostScripts = scripts
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	raw, err := json.MarshalIndent(r.file, "", "  ")
	if err != nil {
		return browser.WrapError(browser.KindInternal, err, "marshal actions")
	}
	if err := os.WriteFile(r.ActionsPath(), raw, 0o644); err != nil {
		return browser.WrapError(browser.KindFilesystemError, err, "write actions.json")
	}
	return nil
}
