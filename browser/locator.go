package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// locatorTimeout bounds the one-shot element lookup. Actions never hold
// long-lived handles: every action takes a fresh locator.
const locatorTimeout = 5 * time.Second

// ElementByXPath resolves the first element matching xpath, waiting up to
// timeout. A miss maps to ElementNotFound.
func (p *Page) ElementByXPath(ctx context.Context, xpath string, timeout time.Duration) (*rod.Element, error) {
	el, err := p.rod.Context(ctx).Timeout(timeout).ElementX(xpath)
	if err != nil {
		if KindOf(Translate(err, "")) == KindTimeout {
			return nil, NewError(KindElementNotFound, "no element for xpath %q", xpath)
		}
		return nil, Translate(err, "element by xpath "+xpath)
	}
	return el, nil
}

// ElementByCSS resolves the first element matching a CSS selector.
func (p *Page) ElementByCSS(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := p.rod.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if KindOf(Translate(err, "")) == KindTimeout {
			return nil, NewError(KindElementNotFound, "no element for selector %q", selector)
		}
		return nil, Translate(err, "element by css "+selector)
	}
	return el, nil
}

// Click clicks the element located by xpath. Forced: if the native click is
// refused (covered, mid-animation), fall back to a synthetic DOM click.
func (p *Page) Click(ctx context.Context, xpath string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		p.logger.Debug("browser: scroll into view before click", "error", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if _, evalErr := el.Eval(`() => this.click()`); evalErr != nil {
			return Translate(evalErr, "click "+xpath)
		}
	}
	return nil
}

// Fill replaces the element's text with the given value.
func (p *Page) Fill(ctx context.Context, xpath, text string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return Translate(err, "focus "+xpath)
	}
	if err := el.SelectAllText(); err != nil {
		p.logger.Debug("browser: select all before fill", "error", err)
	}
	if err := el.Input(text); err != nil {
		return Translate(err, "fill "+xpath)
	}
	return nil
}

// SelectOption sets a <select> element's value and fires input/change.
func (p *Page) SelectOption(ctx context.Context, xpath, value string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	_, err = el.Eval(`(value) => {
		this.value = value;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, value)
	if err != nil {
		return Translate(err, "select option on "+xpath)
	}
	return nil
}

// SetChecked drives a checkbox/radio to the wanted state via a real click,
// so change handlers fire; a no-op when already in that state.
func (p *Page) SetChecked(ctx context.Context, xpath string, want bool) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	_, err = el.Eval(`(want) => { if (this.checked !== want) this.click(); }`, want)
	if err != nil {
		return Translate(err, "set checked on "+xpath)
	}
	return nil
}

// Hover moves the pointer over the element.
func (p *Page) Hover(ctx context.Context, xpath string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return Translate(err, "hover "+xpath)
	}
	return nil
}

// namedKeys maps the key names callers may press to driver keys.
var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Home":       input.Home,
	"End":        input.End,
}

// Press focuses the element and presses a named key, or types a literal
// string when the key is not one of the named ones.
func (p *Page) Press(ctx context.Context, xpath, key string) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return Translate(err, "focus "+xpath)
	}
	if k, ok := namedKeys[key]; ok {
		if err := p.rod.Keyboard.Press(k); err != nil {
			return Translate(err, "press "+key)
		}
		return nil
	}
	if err := el.Input(key); err != nil {
		return Translate(err, "press "+key)
	}
	return nil
}

// EvalOnElement runs a JS function with the located element as `this`.
func (p *Page) EvalOnElement(ctx context.Context, xpath, js string, args ...any) error {
	el, err := p.ElementByXPath(ctx, xpath, locatorTimeout)
	if err != nil {
		return err
	}
	if _, err := el.Eval(js, args...); err != nil {
		return Translate(err, "evaluate on "+xpath)
	}
	return nil
}
