package axview

import "strings"

// renderOutline emits the deterministic indented rendering of the pruned
// forest: pre-order traversal, two spaces per level, one line per node in
// the form "[<encodedId>] <role>[: <content>]". The colon is omitted when
// the node carries no content.
func renderOutline(forest []*Node) string {
	var b strings.Builder
	for _, n := range forest {
		renderNode(&b, n, 0)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
	b.WriteByte('[')
	b.WriteString(n.EncodedID)
	b.WriteString("] ")
	b.WriteString(n.Role)
	if content := nodeContent(n); content != "" {
		b.WriteString(": ")
		b.WriteString(content)
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		renderNode(b, c, depth+1)
	}
}

// nodeContent is the accessibility name, which for static-text nodes is the
// text itself; already trimmed and whitespace-normalized at assembly.
func nodeContent(n *Node) string {
	return n.Name
}
