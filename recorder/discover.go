package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/hazyhaar/simplepage/browser"
)

// Summary is one row of the recordings index.
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ActionsCount   int    `json:"actionsCount"`
	LastActionKind string `json:"lastActionKind,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// List scans the recordings root for subdirectories holding an actions.json
// and summarizes each. Unreadable entries are skipped; an absent root is an
// empty index, not an error.
func List(base string) ([]Summary, error) {
	root := Root(base)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, browser.WrapError(browser.KindFilesystemError, err, "read %s", root)
	}

	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		f, err := load(filepath.Join(root, e.Name(), "actions.json"))
		if err != nil {
			continue
		}
		s := Summary{
			ID:           f.ID,
			Name:         f.Name,
			Description:  f.Description,
			ActionsCount: len(f.Actions),
		}
		if s.ID == "" {
			s.ID = e.Name()
		}
		if n := len(f.Actions); n > 0 {
			s.LastActionKind = f.Actions[n-1].Kind
			s.CreatedAt = f.Actions[0].Timestamp
		} else if info, err := e.Info(); err == nil {
			s.CreatedAt = info.ModTime().UnixMilli()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// Load reads one recording by id. The returned paths point at the recording
// directory and its data/ subdirectory.
func Load(base, id string) (f *File, dir, dataDir string, err error) {
	if !ValidID(id) {
		return nil, "", "", browser.NewError(browser.KindBadRequest, "invalid recording id %q", id)
	}
	dir = filepath.Join(Root(base), id)
	f, err = load(filepath.Join(dir, "actions.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", "", browser.NewError(browser.KindRecordingNotFound, "recording %s", id)
		}
		return nil, "", "", browser.WrapError(browser.KindFilesystemError, err, "load recording %s", id)
	}
	return f, dir, filepath.Join(dir, "data"), nil
}

func load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
