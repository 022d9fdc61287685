// Package postscript evaluates stored post-scripts against recorded HTML.
// Scripts are data attached to actions; they run in a sandboxed JS runtime
// with a small cheerio-like query helper and no host access.
package postscript

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"

	"github.com/hazyhaar/simplepage/browser"
)

// execTimeout bounds one script run; a busy loop is interrupted, not hung.
const execTimeout = 5 * time.Second

// RunOnHTML evaluates the script as fn(html, $) where $ queries the given
// document. The script may be a function expression or a bare body with
// `html` and `$` in scope; its return value is passed through as JSON-able
// Go data.
func RunOnHTML(script, html string) (any, error) {
	vm := goja.New()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, browser.WrapError(browser.KindBadRequest, err, "parse html")
	}
	return run(vm, script, vm.ToValue(html), makeDollar(vm, doc))
}

// RunOnList evaluates the script as fn(htmlArray, $). The helper carries a
// `.load(html)` method so scripts can query individual items.
func RunOnList(script string, htmls []string) (any, error) {
	vm := goja.New()
	return run(vm, script, vm.ToValue(htmls), makeDollar(vm, nil))
}

func run(vm *goja.Runtime, script string, input, dollar goja.Value) (any, error) {
	fn, err := compile(vm, script)
	if err != nil {
		return nil, err
	}

	timer := time.AfterFunc(execTimeout, func() {
		vm.Interrupt("post-script timed out")
	})
	defer timer.Stop()

	res, err := fn(goja.Undefined(), input, dollar)
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			return nil, browser.NewError(browser.KindTimeout, "post-script exceeded %s", execTimeout)
		}
		return nil, browser.WrapError(browser.KindBadRequest, err, "post-script failed")
	}
	return res.Export(), nil
}

// compile accepts either a function expression or a function body.
func compile(vm *goja.Runtime, script string) (goja.Callable, error) {
	if v, err := vm.RunString("(" + script + ")"); err == nil {
		if fn, ok := goja.AssertFunction(v); ok {
			return fn, nil
		}
	}
	v, err := vm.RunString(fmt.Sprintf("(function(html, $) {\n%s\n})", script))
	if err != nil {
		return nil, browser.WrapError(browser.KindBadRequest, err, "compile post-script")
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, browser.NewError(browser.KindBadRequest, "post-script is not a function")
	}
	return fn, nil
}

// makeDollar builds the callable query helper. With a bound document,
// $("sel") queries it; $.load(html) always returns a helper for fresh HTML.
func makeDollar(vm *goja.Runtime, doc *goquery.Document) goja.Value {
	call := func(fc goja.FunctionCall) goja.Value {
		if doc == nil {
			panic(vm.NewTypeError("$ is not bound to a document; use $.load(html)"))
		}
		return selectionValue(vm, doc.Find(fc.Argument(0).String()))
	}
	v := vm.ToValue(call)
	obj := v.ToObject(vm)
	obj.Set("load", func(fc goja.FunctionCall) goja.Value {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(fc.Argument(0).String()))
		if err != nil {
			panic(vm.NewTypeError("load: %v", err))
		}
		return makeDollar(vm, d)
	})
	return v
}

// selectionValue wraps a goquery selection as a cheerio-flavored object.
func selectionValue(vm *goja.Runtime, sel *goquery.Selection) goja.Value {
	obj := vm.NewObject()
	obj.Set("length", sel.Length())
	obj.Set("find", func(fc goja.FunctionCall) goja.Value {
		return selectionValue(vm, sel.Find(fc.Argument(0).String()))
	})
	obj.Set("eq", func(fc goja.FunctionCall) goja.Value {
		return selectionValue(vm, sel.Eq(int(fc.Argument(0).ToInteger())))
	})
	obj.Set("first", func(fc goja.FunctionCall) goja.Value {
		return selectionValue(vm, sel.First())
	})
	obj.Set("text", func(fc goja.FunctionCall) goja.Value {
		return vm.ToValue(sel.Text())
	})
	obj.Set("html", func(fc goja.FunctionCall) goja.Value {
		h, err := sel.Html()
		if err != nil {
			return goja.Null()
		}
		return vm.ToValue(h)
	})
	obj.Set("attr", func(fc goja.FunctionCall) goja.Value {
		if v, ok := sel.Attr(fc.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})
	obj.Set("each", func(fc goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(fc.Argument(0))
		if !ok {
			panic(vm.NewTypeError("each expects a function"))
		}
		sel.Each(func(i int, s *goquery.Selection) {
			fn(goja.Undefined(), vm.ToValue(i), selectionValue(vm, s))
		})
		return goja.Undefined()
	})
	return obj
}
