// Package replay re-issues a recorded action trace against the REST surface,
// driving a fresh non-recording page through the same steps.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/simplepage/action"
)

// Options tune one replay run.
type Options struct {
	// BaseURL is the service root, e.g. "http://127.0.0.1:3100".
	BaseURL string

	// DelayMs sleeps between actions.
	DelayMs int

	// ContinueOnError keeps walking the trace after a failed step.
	ContinueOnError bool

	Verbose bool
	Client  *http.Client
	Logger  *slog.Logger
}

// StepError names one failed step.
type StepError struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result summarizes a run.
type Result struct {
	ExecutedActions int         `json:"executedActions"`
	Errors          []StepError `json:"errors"`
	PageID          string      `json:"pageId,omitempty"`
}

// Run walks the trace sequentially. The create step opens a non-recording
// page; navigate, act, wait, condition and close are re-issued against it;
// kinds with no replay semantics are logged and skipped. The page is closed
// best-effort on exit.
func Run(ctx context.Context, actions []action.Record, opts Options) (*Result, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("replay: base URL is required")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 60 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	res := &Result{}
	r := &runner{opts: opts, log: log, res: res}
	defer r.closePage(context.Background())

	for i, a := range actions {
		if i > 0 && opts.DelayMs > 0 {
			select {
			case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}
		if opts.Verbose {
			log.Info("replay step", "index", i, "kind", a.Kind)
		}

		err := r.step(ctx, a)
		if err == errSkipped {
			log.Info("replay: skipping unsupported kind", "index", i, "kind", a.Kind)
			continue
		}
		if err != nil {
			kind, msg := splitKind(err.Error())
			res.Errors = append(res.Errors, StepError{Index: i, Kind: kind, Message: msg})
			if !opts.ContinueOnError {
				return res, nil
			}
			continue
		}
		res.ExecutedActions++
	}
	return res, nil
}

var errSkipped = fmt.Errorf("skipped")

type runner struct {
	opts   Options
	log    *slog.Logger
	res    *Result
	pageID string
	closed bool
}

func (r *runner) step(ctx context.Context, a action.Record) error {
	switch a.Kind {
	case action.KindCreate:
		return r.create(ctx, a)
	case action.KindNavigate:
		return r.post(ctx, "/navigate", map[string]any{
			"url": a.URL, "timeout": a.Timeout, "description": a.Description,
		}, nil)
	case action.KindNavigateBack:
		return r.post(ctx, "/navigate-back", map[string]any{"description": a.Description}, nil)
	case action.KindNavigateForward:
		return r.post(ctx, "/navigate-forward", map[string]any{"description": a.Description}, nil)
	case action.KindReload:
		return r.post(ctx, "/reload", map[string]any{"timeout": a.Timeout}, nil)
	case action.KindWait:
		return r.post(ctx, "/wait", map[string]any{
			"timeout": a.Timeout, "description": a.Description,
		}, nil)
	case action.KindCondition:
		return r.post(ctx, "/condition", map[string]any{
			"pattern": a.Pattern, "flags": a.Flags, "description": a.Description,
		}, nil)
	case action.KindAct:
		return r.act(ctx, a)
	case action.KindClose:
		err := r.closePage(ctx)
		r.closed = true
		return err
	default:
		return errSkipped
	}
}

func (r *runner) create(ctx context.Context, a action.Record) error {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":          a.Name + " (replay)",
		"url":           a.URL,
		"timeout":       a.Timeout,
		"recordActions": false,
	}
	if err := r.request(ctx, http.MethodPost, "/api/pages", body, &out); err != nil {
		return err
	}
	r.pageID = out.ID
	r.res.PageID = out.ID
	return nil
}

// act prefers the recorded xpath: encoded ids are intra-snapshot currency and
// rarely survive a fresh execution.
func (r *runner) act(ctx context.Context, a action.Record) error {
	if a.XPath != "" {
		return r.post(ctx, "/act-xpath", map[string]any{
			"xpath": a.XPath, "method": a.Method, "args": a.Args, "description": a.Description,
		}, nil)
	}
	if a.EncodedID != "" {
		return r.post(ctx, "/act-id", map[string]any{
			"encodedId": a.EncodedID, "method": a.Method, "args": a.Args, "description": a.Description,
		}, nil)
	}
	return fmt.Errorf("BadRequest: act step carries neither xpath nor encodedId")
}

func (r *runner) post(ctx context.Context, suffix string, body map[string]any, out any) error {
	if r.pageID == "" {
		return fmt.Errorf("BadRequest: trace has no create step before %s", suffix)
	}
	return r.request(ctx, http.MethodPost, "/api/pages/"+r.pageID+suffix, body, out)
}

func (r *runner) closePage(ctx context.Context) error {
	if r.pageID == "" || r.closed {
		return nil
	}
	err := r.request(ctx, http.MethodDelete, "/api/pages/"+r.pageID, nil, nil)
	if err != nil {
		r.log.Warn("replay: page close failed", "page", r.pageID, "error", err)
	}
	r.closed = true
	return err
}

func (r *runner) request(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.opts.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("Internal: %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// splitKind separates the leading taxonomy kind from an error message of the
// form "Kind: detail".
func splitKind(msg string) (kind, rest string) {
	if k, r, ok := strings.Cut(msg, ":"); ok && !strings.ContainsAny(k, " /") {
		return k, strings.TrimSpace(r)
	}
	return "Internal", msg
}
