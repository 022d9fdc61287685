package browser

import (
	"context"

	"github.com/go-rod/rod"
)

// OuterHTMLs returns the outerHTML of every element matching the selector,
// in document order. An empty result is not an error; list extraction with
// zero matches is a valid answer. Engine selectors ("attr=...") traverse
// open and closed shadow roots.
func (p *Page) OuterHTMLs(ctx context.Context, selector string) ([]string, error) {
	if IsEngineSelector(selector) {
		return p.QueryEngineAll(ctx, selector)
	}
	pg := p.rod.Context(ctx).Timeout(locatorTimeout)
	var els rod.Elements
	var err error
	if IsXPath(selector) {
		els, err = pg.ElementsX(selector)
	} else {
		els, err = pg.Elements(selector)
	}
	if err != nil {
		return nil, Translate(err, "query "+selector)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		h, err := el.HTML()
		if err != nil {
			return nil, Translate(err, "outerHTML of match for "+selector)
		}
		out = append(out, h)
	}
	return out, nil
}

// ChildrenHTML locates the parent element matching the selector and returns
// the outerHTML of each of its direct element children.
func (p *Page) ChildrenHTML(ctx context.Context, selector string) ([]string, error) {
	if IsEngineSelector(selector) {
		out, found, err := p.QueryEngineChildren(ctx, selector)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, NewError(KindElementNotFound, "no element matches %s", selector)
		}
		return out, nil
	}
	el, err := p.elementBySelector(ctx, selector)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(`() => Array.from(this.children).map(c => c.outerHTML)`)
	if err != nil {
		return nil, Translate(err, "children of "+selector)
	}
	var out []string
	for _, v := range res.Value.Arr() {
		out = append(out, v.Str())
	}
	return out, nil
}

// ElementHTML returns the outerHTML of the first element matching the
// selector, failing with ElementNotFound when nothing matches in time.
func (p *Page) ElementHTML(ctx context.Context, selector string) (string, error) {
	if IsEngineSelector(selector) {
		html, found, err := p.QueryEngine(ctx, selector)
		if err != nil {
			return "", err
		}
		if !found {
			return "", NewError(KindElementNotFound, "no element matches %s", selector)
		}
		return html, nil
	}
	el, err := p.elementBySelector(ctx, selector)
	if err != nil {
		return "", err
	}
	h, err := el.HTML()
	if err != nil {
		return "", Translate(err, "outerHTML of "+selector)
	}
	return h, nil
}

func (p *Page) elementBySelector(ctx context.Context, selector string) (*rod.Element, error) {
	if IsXPath(selector) {
		return p.ElementByXPath(ctx, selector, locatorTimeout)
	}
	return p.ElementByCSS(ctx, selector, locatorTimeout)
}
