package annotate

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// nodeKind is the block-detection policy's verdict for one element.
type nodeKind int

const (
	kindContainer nodeKind = iota
	kindLeafBlock
	kindStandalone
	kindOpaque // subtree carries no content blocks (script, style, spacers)
)

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "li": true, "td": true, "th": true, "blockquote": true,
	"pre": true, "dt": true, "dd": true, "figcaption": true, "caption": true,
	"div": true, "section": true, "article": true, "aside": true,
	"header": true, "footer": true,
}

var standaloneTags = map[string]bool{
	"img": true, "hr": true,
}

var opaqueTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// classifyNode decides how the block walk treats an element: descend into
// it, collect it as a leaf block, collect it as a standalone visual, or
// skip its subtree entirely.
func classifyNode(n *html.Node) nodeKind {
	if n.Type != html.ElementNode {
		return kindOpaque
	}
	switch {
	case opaqueTags[n.Data]:
		return kindOpaque
	case standaloneTags[n.Data]:
		return kindStandalone
	case blockTags[n.Data] && !containsBlockElement(n):
		return kindLeafBlock
	default:
		return kindContainer
	}
}

// visitBlocks walks the tree in document order and calls visit for every
// collected block element. Leaf blocks are not descended into, so nested
// standalone visuals inside them never receive their own index.
func visitBlocks(root *html.Node, visit func(n *html.Node, kind nodeKind)) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch kind := classifyNode(c); kind {
		case kindLeafBlock, kindStandalone:
			visit(c, kind)
		case kindContainer:
			visitBlocks(c, visit)
		}
	}
}

func containsBlockElement(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.Data] || containsBlockElement(c)) {
			return true
		}
	}
	return false
}

// visitTextNodes calls visit for every text node in document order,
// skipping opaque subtrees. The node list is collected before visiting so
// callers may replace nodes as they go.
func visitTextNodes(root *html.Node, visit func(n *html.Node)) {
	var nodes []*html.Node
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && opaqueTags[c.Data] {
				continue
			}
			if c.Type == html.TextNode {
				nodes = append(nodes, c)
				continue
			}
			collect(c)
		}
	}
	collect(root)
	for _, n := range nodes {
		visit(n)
	}
}

// hasVisibleContent reports whether a block has any non-whitespace text or a
// standalone visual, used to skip empty leaves during indexing.
func hasVisibleContent(n *html.Node) bool {
	if n.Type == html.ElementNode && standaloneTags[n.Data] {
		return true
	}
	if n.Type == html.TextNode && strings.ContainsFunc(n.Data, func(r rune) bool {
		return !unicode.IsSpace(r)
	}) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasVisibleContent(c) {
			return true
		}
	}
	return false
}
