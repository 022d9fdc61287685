package replay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hazyhaar/simplepage/action"
)

// fakeService records the calls the replay driver makes.
type fakeService struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]string // path suffix → error message
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		for suffix, msg := range f.fail {
			if len(r.URL.Path) >= len(suffix) && r.URL.Path[len(r.URL.Path)-len(suffix):] == suffix {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"error": msg})
				return
			}
		}
		if r.Method == http.MethodPost && r.URL.Path == "/api/pages" {
			json.NewEncoder(w).Encode(map[string]string{"id": "replay-page"})
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	return mux
}

func trace() []action.Record {
	return []action.Record{
		{Kind: action.KindCreate, Name: "p", URL: "about:blank"},
		{Kind: action.KindNavigate, URL: "https://example.com", Timeout: 3000},
		{Kind: action.KindAct, XPath: "/html[1]/body[1]/button[1]", EncodedID: "0-7", Method: "click"},
		{Kind: action.KindCondition, Pattern: "Hello"},
		{Kind: action.KindClose},
	}
}

func TestRun_FullTrace(t *testing.T) {
	f := &fakeService{}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	res, err := Run(context.Background(), trace(), Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExecutedActions != 5 || len(res.Errors) != 0 {
		t.Fatalf("result: %+v", res)
	}
	if res.PageID != "replay-page" {
		t.Errorf("page id: %q", res.PageID)
	}

	want := []string{
		"POST /api/pages",
		"POST /api/pages/replay-page/navigate",
		"POST /api/pages/replay-page/act-xpath", // xpath preferred over encoded id
		"POST /api/pages/replay-page/condition",
		"DELETE /api/pages/replay-page",
	}
	if len(f.calls) != len(want) {
		t.Fatalf("calls: %v", f.calls)
	}
	for i, c := range f.calls {
		if c != want[i] {
			t.Errorf("call %d: %q, want %q", i, c, want[i])
		}
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	f := &fakeService{fail: map[string]string{
		"/act-xpath": "ElementNotFound: no match for /html[1]/body[1]/button[1]",
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	res, err := Run(context.Background(), trace(), Options{BaseURL: srv.URL, ContinueOnError: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExecutedActions != 4 {
		t.Errorf("executed: %d", res.ExecutedActions)
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != "ElementNotFound" || res.Errors[0].Index != 2 {
		t.Errorf("errors: %+v", res.Errors)
	}
}

func TestRun_StopOnFirstError(t *testing.T) {
	f := &fakeService{fail: map[string]string{
		"/navigate": "Timeout: navigate to https://example.com",
	}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	res, err := Run(context.Background(), trace(), Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExecutedActions != 1 || len(res.Errors) != 1 {
		t.Fatalf("result: %+v", res)
	}

	// The page still gets a best-effort close on exit.
	last := f.calls[len(f.calls)-1]
	if last != "DELETE /api/pages/replay-page" {
		t.Errorf("no trailing close: %v", f.calls)
	}
}

func TestRun_SkipsUnsupportedKinds(t *testing.T) {
	f := &fakeService{}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	actions := []action.Record{
		{Kind: action.KindCreate, Name: "p", URL: "about:blank"},
		{Kind: action.KindGetListHTML, Selector: "li"},
		{Kind: action.KindClose},
	}
	res, err := Run(context.Background(), actions, Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExecutedActions != 2 || len(res.Errors) != 0 {
		t.Fatalf("result: %+v", res)
	}
	for _, c := range f.calls {
		if c == "POST /api/pages/replay-page/get-list-html" {
			t.Errorf("unsupported kind was issued: %v", f.calls)
		}
	}
}

func TestSplitKind(t *testing.T) {
	k, m := splitKind("ElementNotFound: no match")
	if k != "ElementNotFound" || m != "no match" {
		t.Errorf("got %q %q", k, m)
	}
	k, _ = splitKind("plain failure with spaces: x")
	if k != "Internal" {
		t.Errorf("got %q", k)
	}
}
