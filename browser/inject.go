package browser

import (
	"context"

	"github.com/go-rod/rod/lib/proto"
)

// helperScript is injected into every document of a page. It is guarded by a
// window sentinel, installs the closed-shadow-root backdoor, and pollutes no
// global names beyond the two sentinel properties.
const helperScript = `(() => {
	if (window.__simplepage_injected) return;
	Object.defineProperty(window, '__simplepage_injected', {value: true});
	const roots = new WeakMap();
	const orig = Element.prototype.attachShadow;
	Element.prototype.attachShadow = function (init) {
		const root = orig.call(this, init);
		if (init && init.mode === 'closed') roots.set(this, root);
		return root;
	};
	Object.defineProperty(window, '__simplepage_closedRoot', {
		value: (host) => roots.get(host) || null,
	});
})();`

// InjectHelper installs the helper script on the page: once for all future
// documents and once for the current one. Idempotent: the script guards
// itself with the injection flag.
func (p *Page) InjectHelper(ctx context.Context) error {
	pg := p.rod.Context(ctx)
	_, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: helperScript}.Call(pg)
	if err != nil {
		return Translate(err, "inject helper script")
	}
	if _, err := pg.Eval(`() => { ` + helperScript + ` }`); err != nil {
		return Translate(err, "inject helper script into current document")
	}
	return nil
}
