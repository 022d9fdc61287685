package axview

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// domEntry is the DOM metadata for one backend node id.
type domEntry struct {
	xpath      string
	frameID    string
	tag        string
	nodeType   int
	attrs      map[string]string
	childFrame string // set for iframe owners
}

// domIndex maps backend node ids to their DOM metadata. Built from a single
// pierced DOM.getDocument walk; xpaths are absolute-indexed per frame, every
// step carrying its position among same-tag siblings.
type domIndex struct {
	byBackend map[int]*domEntry
}

func newDOMIndex() *domIndex {
	return &domIndex{byBackend: make(map[int]*domEntry)}
}

// walkDocument indexes a document node. The document itself aliases to its
// document element's xpath ("/html[1]"), so the accessibility root resolves.
func (d *domIndex) walkDocument(doc *proto.DOMNode, frameID string) {
	if doc == nil {
		return
	}
	var docElemPath string
	for _, c := range doc.Children {
		if c.NodeType != 1 {
			continue
		}
		path := d.walkElement(c, "", frameID, siblingIndex(doc.Children, c))
		if docElemPath == "" {
			docElemPath = path
		}
	}
	d.byBackend[int(doc.BackendNodeID)] = &domEntry{
		xpath:    docElemPath,
		frameID:  frameID,
		tag:      "#document",
		nodeType: 9,
	}
}

// walkElement indexes an element and its subtree; returns the element's xpath.
func (d *domIndex) walkElement(n *proto.DOMNode, parentPath, frameID string, idx int) string {
	tag := strings.ToLower(n.NodeName)
	xpath := fmt.Sprintf("%s/%s[%d]", parentPath, tag, idx)

	entry := &domEntry{
		xpath:    xpath,
		frameID:  frameID,
		tag:      tag,
		nodeType: n.NodeType,
		attrs:    attrMap(n.Attributes),
	}
	d.byBackend[int(n.BackendNodeID)] = entry

	// Cross-frame descent: each frame's xpaths are re-rooted at its own
	// content document; the frame ordinal in the encoded id is the bridge.
	if n.ContentDocument != nil {
		entry.childFrame = string(n.FrameID)
		d.walkDocument(n.ContentDocument, string(n.FrameID))
	}

	for _, c := range n.Children {
		switch c.NodeType {
		case 1:
			d.walkElement(c, xpath, frameID, siblingIndex(n.Children, c))
		case 3:
			d.byBackend[int(c.BackendNodeID)] = &domEntry{
				xpath:    xpath + "/text()",
				frameID:  frameID,
				tag:      "#text",
				nodeType: 3,
			}
		}
	}

	// Shadow subtrees carry a shadow-root marker in their paths; such paths
	// are reachable through the selector engine, not document xpath
	// evaluation.
	for _, sr := range n.ShadowRoots {
		for _, c := range sr.Children {
			if c.NodeType == 1 {
				d.walkElement(c, xpath+"/shadow-root", frameID, siblingIndex(sr.Children, c))
			}
		}
	}
	return xpath
}

// siblingIndex is the 1-based position of n among same-tag element siblings.
func siblingIndex(siblings []*proto.DOMNode, n *proto.DOMNode) int {
	idx := 1
	for _, s := range siblings {
		if s == n {
			break
		}
		if s.NodeType == 1 && strings.EqualFold(s.NodeName, n.NodeName) {
			idx++
		}
	}
	return idx
}

// attrMap converts the flat CDP attribute list to a map.
func attrMap(flat []string) map[string]string {
	if len(flat) == 0 {
		return nil
	}
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		m[flat[i]] = flat[i+1]
	}
	return m
}

// resourceRoles are the roles whose primary semantic is a resource reference.
var resourceRoles = map[string]string{
	"link":     "href",
	"image":    "src",
	"img":      "src",
	"video":    "src",
	"audio":    "src",
	"figure":   "src",
	"graphics": "src",
}

// resourceURL resolves the node's href/src attribute to an absolute URL
// against the owning frame's document URL. Empty when not a resource node.
func resourceURL(role string, e *domEntry, frameDocURL string) string {
	attr, ok := resourceRoles[strings.ToLower(role)]
	if !ok || e.attrs == nil {
		return ""
	}
	raw := e.attrs[attr]
	if raw == "" && attr == "src" {
		raw = e.attrs["href"]
	}
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	base, err := url.Parse(frameDocURL)
	if err != nil || frameDocURL == "" {
		return raw
	}
	return base.ResolveReference(u).String()
}
