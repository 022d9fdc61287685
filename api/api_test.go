package api

import (
	"net/http"
	"testing"

	"github.com/hazyhaar/simplepage/browser"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		kind browser.Kind
		want int
	}{
		{browser.KindBadRequest, http.StatusBadRequest},
		{browser.KindUnsupportedMethod, http.StatusBadRequest},
		{browser.KindInvalidSelector, http.StatusBadRequest},
		{browser.KindNoXPathForEncodedID, http.StatusBadRequest},
		{browser.KindXPathMapNotCached, http.StatusBadRequest},
		{browser.KindForbidden, http.StatusForbidden},
		{browser.KindPageNotFound, http.StatusNotFound},
		{browser.KindRecordingNotFound, http.StatusNotFound},
		{browser.KindElementNotFound, http.StatusNotFound},
		{browser.KindTimeout, http.StatusRequestTimeout},
		{browser.KindBusy, http.StatusTooManyRequests},
		{browser.KindInternal, http.StatusInternalServerError},
		{browser.KindDriverGone, http.StatusInternalServerError},
		{browser.KindFilesystemError, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.kind); got != c.want {
			t.Errorf("statusFor(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestDataFilenameShape(t *testing.T) {
	allowed := []string{
		"1700000000001-structure.txt",
		"1700000000001-xpath.json",
		"1700000000001-screenshot.png",
		"1700000000001-page.html",
		"1700000000001-axtree.json",
		"1700000000001-list.json",
		"1700000000001-element.html",
	}
	for _, name := range allowed {
		if !dataFileRe.MatchString(name) {
			t.Errorf("%q should be allowed", name)
		}
	}
	denied := []string{
		"../actions.json",
		"structure.txt",
		"1700000000001-structure.exe",
		"1700000000001-structure.txt.bak",
		"..%2f..%2fetc%2fpasswd",
		"1700000000001-",
		"console-1.log",
	}
	for _, name := range denied {
		if dataFileRe.MatchString(name) {
			t.Errorf("%q should be refused", name)
		}
	}
}

func TestRootFilenameShape(t *testing.T) {
	if !rootFileRe.MatchString("actions.json") || !rootFileRe.MatchString("console-1700000000001.log") {
		t.Error("contractual root files must be allowed")
	}
	for _, name := range []string{"data", "actions.json.bak", "console-.log", "console-x.log"} {
		if rootFileRe.MatchString(name) {
			t.Errorf("%q should be refused", name)
		}
	}
}

func TestContainedPath(t *testing.T) {
	dir := "/var/recordings/p1/data"
	if _, err := containedPath(dir, "123-structure.txt"); err != nil {
		t.Errorf("plain filename rejected: %v", err)
	}
	for _, name := range []string{"../actions.json", "../../other/data/x.txt", "/etc/passwd"} {
		if _, err := containedPath(dir, name); browser.KindOf(err) != browser.KindForbidden {
			t.Errorf("%q: want Forbidden, got %v", name, err)
		}
	}
}

func TestDataContentType(t *testing.T) {
	cases := map[string]string{
		"1-list.json":      "application/json",
		"1-element.html":   "text/html; charset=utf-8",
		"1-screenshot.png": "image/png",
		"1-structure.txt":  "text/plain; charset=utf-8",
	}
	for name, want := range cases {
		if got := dataContentType(name); got != want {
			t.Errorf("%s: %q, want %q", name, got, want)
		}
	}
}
