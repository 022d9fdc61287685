package axview

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/simplepage/frameid"
)

// assemble turns the raw per-frame accessibility nodes into one stitched
// forest: every node gets its encoded id, names are normalized, ignored and
// un-anchored nodes are spliced out, and each iframe owner adopts the root
// of its child frame's tree.
func assemble(trees []frameAXTree, dom *domIndex, reg *frameid.Registry, log *slog.Logger) []*Node {
	if len(trees) == 0 {
		return nil
	}
	topFrame := trees[0].FrameID

	type frameRoot struct {
		frameID string
		root    *Node
	}
	var roots []frameRoot
	owners := make(map[string]*Node) // childFrameID → owner node

	for _, t := range trees {
		byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(t.Nodes))
		var rootRaw *proto.AccessibilityAXNode
		for _, n := range t.Nodes {
			byID[n.NodeID] = n
			if rootRaw == nil && n.ParentID == "" {
				rootRaw = n
			}
		}
		if rootRaw == nil && len(t.Nodes) > 0 {
			rootRaw = t.Nodes[0]
		}
		if rootRaw == nil {
			continue
		}

		conv := &converter{
			byID:     byID,
			dom:      dom,
			reg:      reg,
			frameID:  t.FrameID,
			topFrame: topFrame,
			owners:   owners,
		}
		converted := conv.convert(rootRaw)
		for _, r := range converted {
			roots = append(roots, frameRoot{frameID: t.FrameID, root: r})
		}
	}

	// Stitch child-frame roots under their iframe owners; whatever has no
	// owner in this snapshot stays a forest root.
	var forest []*Node
	for _, r := range roots {
		if owner, ok := owners[r.frameID]; ok && r.frameID != topFrame {
			owner.Children = append(owner.Children, r.root)
			owner.frameOwner = true
			continue
		}
		forest = append(forest, r.root)
	}
	if len(forest) == 0 && len(roots) > 0 {
		log.Warn("axview: no forest root survived stitching")
	}
	return forest
}

type converter struct {
	byID     map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode
	dom      *domIndex
	reg      *frameid.Registry
	frameID  string
	topFrame string
	owners   map[string]*Node
}

// convert maps one raw node to zero or more forest nodes. Ignored nodes and
// nodes without a DOM anchor are spliced: their children float up.
func (c *converter) convert(raw *proto.AccessibilityAXNode) []*Node {
	var kids []*Node
	for _, id := range raw.ChildIDs {
		child, ok := c.byID[id]
		if !ok {
			continue
		}
		kids = append(kids, c.convert(child)...)
	}

	if raw.Ignored {
		return kids
	}

	backendID := int(raw.BackendDOMNodeID)
	entry, anchored := c.dom.byBackend[backendID]
	if !anchored {
		return kids
	}

	nodeFrame := c.frameID
	if raw.FrameID != "" {
		nodeFrame = string(raw.FrameID)
	}
	// The top frame encodes as ordinal 0: the registry's seeded entry.
	ordKey := nodeFrame
	if nodeFrame == c.topFrame {
		ordKey = ""
	}

	n := &Node{
		Role:         axValueString(raw.Role),
		Name:         normalizeText(axValueString(raw.Name)),
		Value:        normalizeText(axValueString(raw.Value)),
		Description:  normalizeText(axValueString(raw.Description)),
		EncodedID:    c.reg.Encode(ordKey, backendID),
		BackendID:    backendID,
		FrameOrdinal: c.reg.Ordinal(ordKey),
		NodeType:     entry.nodeType,
		Children:     kids,
	}
	if n.Name == "" {
		n.Name = n.Description
	}
	if entry.childFrame != "" {
		c.owners[entry.childFrame] = n
		n.frameOwner = true
	}
	return []*Node{n}
}

func axValueString(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	val := v.Value.Val()
	switch x := val.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// normalizeText strips control characters and collapses internal whitespace
// to single spaces, yielding a trimmed single line.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Roles that are structure only: candidates for the fold rule.
func isStructural(role string) bool {
	switch strings.ToLower(role) {
	case "generic", "none", "presentation", "":
		return true
	}
	return false
}

// Named landmarks are never pruned even when nameless.
func isLandmark(role string) bool {
	switch strings.ToLower(role) {
	case "banner", "complementary", "contentinfo", "form", "main",
		"navigation", "region", "search":
		return true
	}
	return false
}

// pruneForest applies the stable folding rule: a structural node with no
// accessible name and no value whose children collapse to one node or none
// is replaced by that child (or dropped). Frame owners and landmarks stay.
func pruneForest(forest []*Node) []*Node {
	var out []*Node
	for _, n := range forest {
		out = append(out, pruneNode(n)...)
	}
	return out
}

func pruneNode(n *Node) []*Node {
	var kids []*Node
	for _, c := range n.Children {
		kids = append(kids, pruneNode(c)...)
	}
	n.Children = kids

	if n.frameOwner || isLandmark(n.Role) || n.Value != "" {
		return []*Node{n}
	}
	if isStructural(n.Role) && n.Name == "" && len(kids) <= 1 {
		return kids
	}
	return []*Node{n}
}
