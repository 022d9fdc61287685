// Package axview builds the normalized accessibility view of a page: a
// deterministic textual outline, an encodedId→XPath map, and an id→URL map,
// assembled from the browser's raw accessibility trees and DOM metadata
// across frames.
package axview

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/simplepage/browser"
	"github.com/hazyhaar/simplepage/frameid"
)

// Node is one entry of the pruned accessibility forest.
type Node struct {
	Role         string  `json:"role"`
	Name         string  `json:"name,omitempty"`
	Value        string  `json:"value,omitempty"`
	Description  string  `json:"description,omitempty"`
	EncodedID    string  `json:"encodedId"`
	BackendID    int     `json:"backendNodeId"`
	FrameOrdinal int     `json:"frameOrdinal"`
	NodeType     int     `json:"nodeType,omitempty"`
	Children     []*Node `json:"children,omitempty"`

	// frameOwner marks iframe owners and shadow hosts whose children include
	// a nested tree's root; they are never pruned.
	frameOwner bool
}

// View is the result of one snapshot build.
type View struct {
	Simplified string
	XPathMap   map[string]string
	IDToURL    map[string]string
	Tree       []*Node

	// Raw carries the per-frame accessibility nodes for the optional
	// axtree debug artifact.
	Raw any
}

// Options tune a build.
type Options struct {
	// Scope restricts the view to the subtree rooted at the first element
	// matching this CSS/XPath selector. Empty = whole page.
	Scope string

	Logger *slog.Logger
}

// frameAXTree pairs a frame id with its raw accessibility nodes.
type frameAXTree struct {
	FrameID string                       `json:"frameId"`
	Nodes   []*proto.AccessibilityAXNode `json:"nodes"`
}

// Build produces the accessibility view for a page. The output is a pure
// function of the accessibility snapshot plus the frame registry's state.
// Failures fetching the AX trees or the DOM are fatal (AxExtractionFailed);
// URL harvesting and scoping failures degrade with a log line.
func Build(ctx context.Context, pg *browser.Page, reg *frameid.Registry, opts Options) (*View, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	page := pg.Rod().Context(ctx)

	// Frame inventory. The top frame is always present; child entries give
	// us per-frame document URLs for resolving harvested href/src values.
	ft, err := proto.PageGetFrameTree{}.Call(page)
	if err != nil {
		return nil, browser.WrapError(browser.KindAxExtractionFailed, err, "frame tree")
	}
	frames := flattenFrameTree(ft.FrameTree)

	// Raw accessibility nodes, one tree per frame. A child frame that cannot
	// be served by this session (out-of-process document in transit) is
	// skipped; its owner element still appears in the outline.
	axTrees := make([]frameAXTree, 0, len(frames))
	for i, f := range frames {
		res, err := proto.AccessibilityGetFullAXTree{FrameID: proto.PageFrameID(f.id)}.Call(page)
		if err != nil {
			if i == 0 {
				return nil, browser.WrapError(browser.KindAxExtractionFailed, err, "accessibility tree for top frame")
			}
			log.Debug("axview: skipping frame without accessibility tree",
				"frame", f.id, "error", err)
			continue
		}
		axTrees = append(axTrees, frameAXTree{FrameID: f.id, Nodes: res.Nodes})
	}

	// DOM metadata: one pierced walk from the top session yields xpaths,
	// tags, attributes and child-frame links for every backend node id.
	depth := -1
	doc, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(page)
	if err != nil {
		return nil, browser.WrapError(browser.KindAxExtractionFailed, err, "dom document")
	}
	dom := newDOMIndex()
	dom.walkDocument(doc.Root, pg.FrameID())

	forest := assemble(axTrees, dom, reg, log)

	if opts.Scope != "" {
		if scoped, ok := scopeForest(ctx, pg, forest, opts.Scope); ok {
			forest = scoped
		} else {
			log.Warn("axview: scope selector matched nothing, using full tree",
				"selector", opts.Scope)
		}
	}

	forest = pruneForest(forest)

	view := &View{
		Simplified: renderOutline(forest),
		XPathMap:   make(map[string]string),
		IDToURL:    make(map[string]string),
		Tree:       forest,
		Raw:        axTrees,
	}
	collectMaps(forest, dom, frames, view, log)
	return view, nil
}

// scopeTimeout bounds the scope-selector lookup; a scope that cannot be
// located quickly falls back to the full tree.
const scopeTimeout = 2 * time.Second

type frameInfo struct {
	id  string
	url string
}

func flattenFrameTree(t *proto.PageFrameTree) []frameInfo {
	if t == nil || t.Frame == nil {
		return nil
	}
	out := []frameInfo{{id: string(t.Frame.ID), url: t.Frame.URL}}
	for _, c := range t.ChildFrames {
		out = append(out, flattenFrameTree(c)...)
	}
	return out
}

// scopeForest restricts the forest to the subtree rooted at the element
// matched by the selector. Returns false when the selector or its backend
// node cannot be located in the current forest.
func scopeForest(ctx context.Context, pg *browser.Page, forest []*Node, selector string) ([]*Node, bool) {
	el, err := resolveScopeElement(ctx, pg, selector)
	if err != nil {
		return nil, false
	}
	desc, err := el.Describe(0, false)
	if err != nil || desc == nil {
		return nil, false
	}
	target := int(desc.BackendNodeID)
	if n := findByBackendID(forest, target); n != nil {
		return []*Node{n}, true
	}
	return nil, false
}

func resolveScopeElement(ctx context.Context, pg *browser.Page, selector string) (*rod.Element, error) {
	if browser.IsXPath(selector) {
		return pg.ElementByXPath(ctx, selector, scopeTimeout)
	}
	return pg.ElementByCSS(ctx, selector, scopeTimeout)
}

func findByBackendID(forest []*Node, backendID int) *Node {
	for _, n := range forest {
		if n.BackendID == backendID {
			return n
		}
		if hit := findByBackendID(n.Children, backendID); hit != nil {
			return hit
		}
	}
	return nil
}

// collectMaps fills XPathMap and IDToURL from the final forest only, so the
// emitted outline and the maps always agree on the encoded-id key set.
func collectMaps(forest []*Node, dom *domIndex, frames []frameInfo, view *View, log *slog.Logger) {
	frameURL := make(map[string]string, len(frames))
	for _, f := range frames {
		frameURL[f.id] = f.url
	}

	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			if e, ok := dom.byBackend[n.BackendID]; ok {
				view.XPathMap[n.EncodedID] = e.xpath
				if u := resourceURL(n.Role, e, frameURL[e.frameID]); u != "" {
					view.IDToURL[n.EncodedID] = u
				}
			} else {
				log.Debug("axview: no dom entry for node", "encoded_id", n.EncodedID)
			}
			walk(n.Children)
		}
	}
	walk(forest)
}
