package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/simplepage/action"
	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/postscript"
	"github.com/hazyhaar/simplepage/recorder"
)

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	sums, err := recorder.List(s.mgr.Base())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if sums == nil {
		sums = []recorder.Summary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, dir, dataDir, err := recorder.Load(s.mgr.Base(), id)
	if err != nil {
		if browser.KindOf(err) == browser.KindRecordingNotFound {
			// A live non-recording page has no recording; say so instead of 404.
			if _, gerr := s.mgr.Get(id); gerr == nil {
				writeJSON(w, http.StatusOK, map[string]any{
					"recordingEnabled": false,
					"message":          "recording is disabled for this page",
				})
				return
			}
		}
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          f.ID,
		"name":        f.Name,
		"description": f.Description,
		"actions":     f.Actions,
		"basePath":    dir,
		"dataPath":    dataDir,
	})
}

// Artifact filenames are narrow by contract: a millisecond timestamp prefix
// and a known suffix. Anything else is refused before touching the disk.
var (
	dataFileRe = regexp.MustCompile(`^\d+-(structure\.txt|xpath\.json|screenshot\.png|page\.html|axtree\.json|list\.json|element\.html)$`)
	rootFileRe = regexp.MustCompile(`^(actions\.json|console-\d+\.log)$`)
)

func dataContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	default:
		return "text/plain; charset=utf-8"
	}
}

// containedPath joins name under dir and rejects anything that escapes it.
// Only bare filenames are legal; separators and dot-dot never are.
func containedPath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", browser.NewError(browser.KindForbidden, "path escapes recording directory")
	}
	path := filepath.Join(dir, name)
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", browser.NewError(browser.KindForbidden, "path escapes recording directory")
	}
	return path, nil
}

func (s *Server) handleRecordingFile(w http.ResponseWriter, r *http.Request) {
	s.serveRecordingFile(w, r, rootFileRe, false)
}

func (s *Server) handleRecordingData(w http.ResponseWriter, r *http.Request) {
	s.serveRecordingFile(w, r, dataFileRe, true)
}

func (s *Server) serveRecordingFile(w http.ResponseWriter, r *http.Request, shape *regexp.Regexp, fromData bool) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "filename")
	if !shape.MatchString(name) {
		s.writeErr(w, browser.NewError(browser.KindForbidden, "filename %q not allowed", name))
		return
	}
	_, dir, dataDir, err := recorder.Load(s.mgr.Base(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	base := dir
	if fromData {
		base = dataDir
	}
	path, err := containedPath(base, name)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeErr(w, browser.NewError(browser.KindRecordingNotFound, "file %s", name))
			return
		}
		s.writeErr(w, browser.WrapError(browser.KindFilesystemError, err, "read %s", name))
		return
	}
	w.Header().Set("Content-Type", dataContentType(name))
	_, _ = w.Write(raw)
}

// handlePostScripts stores post-scripts on a recorded action and, when asked,
// runs them against the action's archived list or element HTML.
func (s *Server) handlePostScripts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		s.writeErr(w, browser.NewError(browser.KindBadRequest, "action index must be an integer"))
		return
	}
	var body struct {
		Scripts []string `json:"scripts"`
		Run     bool     `json:"run"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeErr(w, err)
		return
	}
	if len(body.Scripts) == 0 {
		s.writeErr(w, browser.NewError(browser.KindBadRequest, "scripts is required"))
		return
	}

	f, _, dataDir, err := recorder.Load(s.mgr.Base(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if idx < 0 || idx >= len(f.Actions) {
		s.writeErr(w, browser.NewError(browser.KindBadRequest, "action index %d out of range", idx))
		return
	}

	rec, err := recorder.New(s.mgr.Base(), id, f.Name, f.Description, s.log)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := rec.SetPostScripts(idx, body.Scripts); err != nil {
		s.writeErr(w, err)
		return
	}

	resp := map[string]any{"success": true}
	if body.Run {
		results, err := runPostScripts(f.Actions[idx], dataDir, body.Scripts)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		resp["results"] = results
	}
	writeJSON(w, http.StatusOK, resp)
}

// runPostScripts feeds each script the action's archived HTML: the list file
// for list extractions, the element file otherwise.
func runPostScripts(a action.Record, dataDir string, scripts []string) ([]any, error) {
	var (
		listItems []string
		html      string
	)
	switch {
	case a.ListFile != "":
		path, err := containedPath(dataDir, a.ListFile)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, browser.WrapError(browser.KindFilesystemError, err, "read %s", a.ListFile)
		}
		if err := json.Unmarshal(raw, &listItems); err != nil {
			return nil, browser.WrapError(browser.KindInternal, err, "parse %s", a.ListFile)
		}
	case a.ElementFile != "":
		path, err := containedPath(dataDir, a.ElementFile)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, browser.WrapError(browser.KindFilesystemError, err, "read %s", a.ElementFile)
		}
		html = string(raw)
	default:
		return nil, browser.NewError(browser.KindBadRequest,
			"action %q carries no list or element artifact", a.Kind)
	}

	out := make([]any, 0, len(scripts))
	for _, script := range scripts {
		var (
			res any
			err error
		)
		if listItems != nil {
			res, err = postscript.RunOnList(script, listItems)
		} else {
			res, err = postscript.RunOnHTML(script, html)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
