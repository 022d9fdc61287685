package action

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/simplepage/browser"
)

func TestParseScroll(t *testing.T) {
	cases := []struct {
		arg  string
		mode string
		n    int
		ok   bool
	}{
		{"top", "start", 0, true},
		{"left", "start", 0, true},
		{"bottom", "end", 0, true},
		{"right", "end", 0, true},
		{"250", "relative", 250, true},
		{"0", "relative", 0, true},
		{"-400", "absolute", 400, true},
		{"sideways", "", 0, false},
		{"12.5", "", 0, false},
	}
	for _, c := range cases {
		mode, n, err := parseScroll(c.arg)
		if c.ok && err != nil {
			t.Errorf("parseScroll(%q): unexpected error %v", c.arg, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("parseScroll(%q): want error", c.arg)
			} else if browser.KindOf(err) != browser.KindInvalidArgs {
				t.Errorf("parseScroll(%q): kind %s", c.arg, browser.KindOf(err))
			}
			continue
		}
		if mode != c.mode || n != c.n {
			t.Errorf("parseScroll(%q) = (%s, %d), want (%s, %d)", c.arg, mode, n, c.mode, c.n)
		}
	}
}

func TestCheckArgs(t *testing.T) {
	cases := []struct {
		method string
		args   []string
		kind   browser.Kind // "" means no error expected
	}{
		{"click", nil, ""},
		{"click", []string{"x"}, browser.KindInvalidArgs},
		{"fill", []string{"alice"}, ""},
		{"fill", nil, browser.KindInvalidArgs},
		{"press", []string{"Enter"}, ""},
		{"scrollY", []string{"bottom"}, ""},
		{"scrollY", []string{"down"}, browser.KindInvalidArgs},
		{"handleDialog", []string{"accept"}, ""},
		{"handleDialog", []string{"accept", "hello"}, ""},
		{"handleDialog", []string{"maybe"}, browser.KindInvalidArgs},
		{"fileUpload", []string{"/tmp/a.txt", "/tmp/b.txt"}, ""},
		{"fileUpload", nil, browser.KindInvalidArgs},
	}
	for _, c := range cases {
		err := checkArgs(c.method, c.args)
		if c.kind == "" {
			if err != nil {
				t.Errorf("checkArgs(%s, %v): unexpected %v", c.method, c.args, err)
			}
			continue
		}
		if err == nil || browser.KindOf(err) != c.kind {
			t.Errorf("checkArgs(%s, %v): got %v, want kind %s", c.method, c.args, err, c.kind)
		}
	}
}

func TestExecute_UnsupportedMethod(t *testing.T) {
	err := Execute(context.Background(), nil, nil, Request{
		XPath:  "/html[1]/body[1]",
		Method: "doubleClick",
	})
	var de *browser.Error
	if !errors.As(err, &de) || de.Kind != browser.KindUnsupportedMethod {
		t.Fatalf("want UnsupportedMethod, got %v", err)
	}
}

func TestExecute_BadArgsBeforeDriver(t *testing.T) {
	// A nil page proves validation rejects before any driver call.
	err := Execute(context.Background(), nil, nil, Request{
		XPath:  "/html[1]/body[1]/input[1]",
		Method: "fill",
	})
	if browser.KindOf(err) != browser.KindInvalidArgs {
		t.Fatalf("want InvalidArgs, got %v", err)
	}
}
