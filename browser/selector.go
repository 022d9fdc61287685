package browser

import (
	"context"
	"strings"
	"sync"
)

// The attribute selector engine. The driver allows one registration per
// process, so registration is an idempotent, process-wide init: the engine
// name and default attribute are fixed at first registration and re-registering
// with the same parameters is silently tolerated.

var (
	engineOnce sync.Once
	engineName string
	engineAttr string
)

// RegisterSelectorEngine fixes the engine's name and default attribute.
// Safe to call repeatedly from every page init.
func RegisterSelectorEngine(name, defaultAttr string) {
	engineOnce.Do(func() {
		engineName = name
		engineAttr = defaultAttr
	})
}

// engineQueryJS walks the element tree including open shadow roots and, via
// the injected backdoor, closed ones, collecting elements whose attribute
// matches. A null value matches mere attribute presence.
const engineQueryJS = `(attr, value, all) => {
	const getClosedRoot = window.__simplepage_closedRoot || (() => null);
	const out = [];
	const walk = (node) => {
		if (!node) return;
		if (node.nodeType === 1) {
			const v = node.getAttribute(attr);
			if (value === null ? v !== null : v === value) {
				out.push(node);
				if (!all) return;
			}
			if (node.shadowRoot) walk(node.shadowRoot);
			const closed = getClosedRoot(node);
			if (closed) walk(closed);
		}
		const kids = node.children || [];
		for (const c of kids) {
			walk(c);
			if (!all && out.length > 0) return;
		}
	};
	walk(document.documentElement);
	return all ? out : (out[0] || null);
}`

// IsEngineSelector reports whether the selector addresses the attribute
// engine: "<engine>=...", e.g. "attr=data-qa=submit" or "attr=submit".
func IsEngineSelector(sel string) bool {
	return engineName != "" && strings.HasPrefix(sel, engineName+"=")
}

// parseEngineSelector drops the engine prefix, if any, and splits
// "attr=value" into its parts; a bare selector means the default attribute
// equals the given value.
func parseEngineSelector(sel string) (attr, value string) {
	if IsEngineSelector(sel) {
		sel = sel[len(engineName)+1:]
	}
	if a, v, ok := strings.Cut(sel, "="); ok && a != "" {
		return a, v
	}
	return engineAttr, sel
}

// QueryEngine resolves the first element matching an attribute selector,
// traversing open and closed shadow roots.
func (p *Page) QueryEngine(ctx context.Context, sel string) (outerHTML string, found bool, err error) {
	attr, value := parseEngineSelector(sel)
	res, err := p.rod.Context(ctx).Eval(`(attr, value) => {
		const find = `+engineQueryJS+`;
		const el = find(attr, value, false);
		return el ? el.outerHTML : null;
	}`, attr, value)
	if err != nil {
		return "", false, Translate(err, "selector engine query")
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

// QueryEngineAll resolves every element matching an attribute selector, in
// tree order, returning their outerHTML.
func (p *Page) QueryEngineAll(ctx context.Context, sel string) ([]string, error) {
	attr, value := parseEngineSelector(sel)
	res, err := p.rod.Context(ctx).Eval(`(attr, value) => {
		const find = `+engineQueryJS+`;
		return find(attr, value, true).map(el => el.outerHTML);
	}`, attr, value)
	if err != nil {
		return nil, Translate(err, "selector engine query")
	}
	var out []string
	for _, v := range res.Value.Arr() {
		out = append(out, v.Str())
	}
	return out, nil
}

// QueryEngineChildren returns the outerHTML of each direct child of the
// first element matching an attribute selector.
func (p *Page) QueryEngineChildren(ctx context.Context, sel string) ([]string, bool, error) {
	attr, value := parseEngineSelector(sel)
	res, err := p.rod.Context(ctx).Eval(`(attr, value) => {
		const find = `+engineQueryJS+`;
		const el = find(attr, value, false);
		return el ? Array.from(el.children).map(c => c.outerHTML) : null;
	}`, attr, value)
	if err != nil {
		return nil, false, Translate(err, "selector engine query")
	}
	if res.Value.Nil() {
		return nil, false, nil
	}
	var out []string
	for _, v := range res.Value.Arr() {
		out = append(out, v.Str())
	}
	return out, true, nil
}

// IsXPath applies the selector dialect test: a selector is XPath when it
// starts with "/" or "(" or contains "::"; otherwise it is CSS.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") || strings.Contains(s, "::")
}
