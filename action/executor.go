package action

import (
	"context"
	"strconv"
	"time"

	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/settle"
)

// Request is one interaction to run against a resolved xpath. The caller has
// already translated encoded ids to xpaths through the page's cached map.
type Request struct {
	XPath  string
	Method string
	Args   []string

	// SettleAfter bounds the post-action quiescence wait; zero means the
	// page default.
	SettleAfter time.Duration
}

// Execute dispatches the request's method against the element at its xpath,
// then waits for the page to settle. A fresh locator is taken per call; no
// element handles outlive the action.
func Execute(ctx context.Context, pg *browser.Page, det *settle.Detector, req Request) error {
	if err := checkArgs(req.Method, req.Args); err != nil {
		return err
	}

	var err error
	switch req.Method {
	case "click":
		err = pg.Click(ctx, req.XPath)
	case "fill":
		err = pg.Fill(ctx, req.XPath, req.Args[0])
	case "selectOption":
		err = pg.SelectOption(ctx, req.XPath, req.Args[0])
	case "check":
		err = pg.SetChecked(ctx, req.XPath, true)
	case "uncheck":
		err = pg.SetChecked(ctx, req.XPath, false)
	case "hover":
		err = pg.Hover(ctx, req.XPath)
	case "press":
		err = pg.Press(ctx, req.XPath, req.Args[0])
	case "scrollX":
		err = scroll(ctx, pg, req.XPath, "x", req.Args[0])
	case "scrollY":
		err = scroll(ctx, pg, req.XPath, "y", req.Args[0])
	case "handleDialog":
		err = handleDialog(ctx, pg, req)
	case "fileUpload":
		err = pg.SetInputFiles(ctx, req.XPath, req.Args)
	default:
		return browser.NewError(browser.KindUnsupportedMethod, "method %q", req.Method)
	}
	if err != nil {
		return err
	}

	det.Wait(ctx, req.SettleAfter)
	return nil
}

// checkArgs validates the argument arity per method before any driver call.
func checkArgs(method string, args []string) error {
	var min, max int
	switch method {
	case "click", "check", "uncheck", "hover":
		min, max = 0, 0
	case "fill", "selectOption", "press", "scrollX", "scrollY":
		min, max = 1, 1
	case "handleDialog":
		min, max = 1, 2
	case "fileUpload":
		min, max = 1, 64
	default:
		return nil // unsupported methods are rejected by the dispatch
	}
	if len(args) < min || len(args) > max {
		return browser.NewError(browser.KindInvalidArgs,
			"method %q takes %d-%d args, got %d", method, min, max, len(args))
	}
	if method == "scrollX" || method == "scrollY" {
		if _, _, err := parseScroll(args[0]); err != nil {
			return err
		}
	}
	if method == "handleDialog" {
		if args[0] != "accept" && args[0] != "dismiss" {
			return browser.NewError(browser.KindInvalidArgs,
				"handleDialog arg must be accept or dismiss, got %q", args[0])
		}
	}
	return nil
}

// parseScroll maps the single scroll argument to a mode and pixel count:
// "top"/"left" and "bottom"/"right" are edges, a positive integer is a
// relative delta, and a negative integer is an absolute target at |n|.
func parseScroll(arg string) (mode string, n int, err error) {
	switch arg {
	case "top", "left":
		return "start", 0, nil
	case "bottom", "right":
		return "end", 0, nil
	}
	v, convErr := strconv.Atoi(arg)
	if convErr != nil {
		return "", 0, browser.NewError(browser.KindInvalidArgs,
			"scroll arg must be top/bottom/left/right or an integer, got %q", arg)
	}
	if v < 0 {
		return "absolute", -v, nil
	}
	return "relative", v, nil
}

const scrollJS = `(axis, mode, n) => {
	const vertical = axis === 'y';
	const tag = this.tagName;
	if (tag === 'BODY' || tag === 'HTML') {
		const doc = document.documentElement;
		if (mode === 'relative') {
			window.scrollBy(vertical ? 0 : n, vertical ? n : 0);
			return;
		}
		let target = n;
		if (mode === 'start') target = 0;
		if (mode === 'end') target = vertical ? doc.scrollHeight : doc.scrollWidth;
		window.scrollTo(vertical ? {top: target} : {left: target});
		return;
	}
	const prop = vertical ? 'scrollTop' : 'scrollLeft';
	if (mode === 'start') this[prop] = 0;
	else if (mode === 'end') this[prop] = vertical ? this.scrollHeight : this.scrollWidth;
	else if (mode === 'relative') this[prop] += n;
	else this[prop] = n;
}`

func scroll(ctx context.Context, pg *browser.Page, xpath, axis, arg string) error {
	mode, n, err := parseScroll(arg)
	if err != nil {
		return err
	}
	return pg.EvalOnElement(ctx, xpath, scrollJS, axis, mode, n)
}

// handleDialog arms a one-shot dialog handler, clicks the target to trigger
// it, and fails with DialogNotFired when nothing surfaces before the settle
// deadline.
func handleDialog(ctx context.Context, pg *browser.Page, req Request) error {
	accept := req.Args[0] == "accept"
	promptText := ""
	if len(req.Args) > 1 {
		promptText = req.Args[1]
	}
	deadline := req.SettleAfter
	if deadline <= 0 {
		deadline = settle.DefaultTimeout
	}

	wait := pg.ArmDialog(accept, promptText, deadline)
	if err := pg.Click(ctx, req.XPath); err != nil {
		return err
	}
	res, err := wait()
	if err != nil {
		return err
	}
	if !res.Fired {
		return browser.NewError(browser.KindDialogNotFired,
			"no dialog within %s after clicking %s", deadline, req.XPath)
	}
	return nil
}
