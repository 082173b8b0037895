// Package annotate maps word-level diff results onto two independently
// structured document trees as highlighted runs, classifies images from the
// match report, and tags structural content blocks with stable indices.
package annotate

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sunzi-skynet/contentcheck-3000/internal/imagematch"
	"github.com/sunzi-skynet/contentcheck-3000/internal/textdiff"
	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

// Input carries everything one comparison needs annotated: the two
// sanitized fragments, the shared change list, the two plain texts the diff
// was computed from, and the image match report.
type Input struct {
	Source     *html.Node
	Target     *html.Node
	SourceText string
	TargetText string
	Changes    []textdiff.Change
	Images     imagematch.Report
	SessionID  string
}

// Output holds the two complete, independently renderable documents.
type Output struct {
	SourceHTML   string
	TargetHTML   string
	SourceBlocks int
	TargetBlocks int
}

const (
	classMigrated    = "cc-migrated"
	classNotMigrated = "cc-not-migrated"
	classMoved       = "cc-moved"

	attrBlock  = "data-cc-block"
	attrShared = "data-cc-shared"
	attrSpacer = "data-cc-spacer"
)

// Annotate produces the two highlighted documents. It is total: character
// mismatches degrade to untagged output, and a nil fragment still yields a
// valid, complete wrapped document.
func Annotate(in Input) Output {
	var out Output

	if in.Source != nil {
		tagged := buildTagged(in.Changes, textdiff.Removed, in.TargetText)
		annotateText(in.Source, tagged)
		annotateSourceImages(in.Source, in.Images)
		out.SourceBlocks = assignBlocks(in.Source)
	}
	if in.Target != nil {
		tagged := buildTagged(in.Changes, textdiff.Added, in.SourceText)
		annotateText(in.Target, tagged)
		annotateTargetImages(in.Target, in.Images)
		out.TargetBlocks = assignBlocks(in.Target)
	}

	out.SourceHTML = wrapDocument(in.Source, in.SessionID, viewsync.SideSource)
	out.TargetHTML = wrapDocument(in.Target, in.SessionID, viewsync.SideTarget)
	return out
}

// annotateText walks the document's text in document order, matching
// non-whitespace characters one-to-one against the tagged stream. The
// flattened diff text and the document's text-node boundaries are not
// aligned string-for-string (adjacent inline elements concatenate without
// spaces), so matching is character-for-character with whitespace set
// aside. Whitespace inherits the classification of the nearest preceding
// non-whitespace character.
func annotateText(root *html.Node, tagged []taggedChar) {
	pos := 0
	current := ClassNone

	visitTextNodes(root, func(n *html.Node) {
		var runs []*classifiedRun
		push := func(class Class, r rune) {
			if len(runs) == 0 || runs[len(runs)-1].class != class {
				runs = append(runs, &classifiedRun{class: class})
			}
			runs[len(runs)-1].text.WriteRune(r)
		}

		for _, r := range n.Data {
			if unicode.IsSpace(r) {
				push(current, r)
				continue
			}
			if pos < len(tagged) && tagged[pos].r == r {
				current = tagged[pos].class
				pos++
			} else {
				// Upstream normalization difference: emit untagged rather
				// than failing, and leave the stream position untouched.
				current = ClassNone
			}
			push(current, r)
		}

		replaceWithRuns(n, runs)
	})
}

// classifiedRun is a maximal run of identically classified characters
// within one text node.
type classifiedRun struct {
	class Class
	text  strings.Builder
}

// replaceWithRuns substitutes a text node with span-wrapped runs. Untagged
// runs stay bare text nodes.
func replaceWithRuns(n *html.Node, runs []*classifiedRun) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for _, r := range runs {
		textNode := &html.Node{Type: html.TextNode, Data: r.text.String()}
		if r.class == ClassNone {
			parent.InsertBefore(textNode, n)
			continue
		}
		span := &html.Node{
			Type:     html.ElementNode,
			Data:     "span",
			DataAtom: atom.Span,
			Attr:     []html.Attribute{{Key: "class", Val: spanClass(r.class)}},
		}
		span.AppendChild(textNode)
		parent.InsertBefore(span, n)
	}
	parent.RemoveChild(n)
}

// spanClass maps a classification to its markup classes. Moved content
// renders identically to migrated content; the extra marker class only
// exists so block classification can exclude it from shared counts.
func spanClass(class Class) string {
	switch class {
	case ClassMigrated:
		return classMigrated
	case ClassNotMigrated:
		return classNotMigrated
	case ClassMoved:
		return classMigrated + " " + classMoved
	default:
		return ""
	}
}

// assignBlocks gives every collected block a stable sequential index, marks
// whether it is shared, and inserts a zero-size spacer immediately before
// it for the alignment engine to resize later. Returns the block count.
func assignBlocks(root *html.Node) int {
	var blocks []*html.Node
	visitBlocks(root, func(n *html.Node, _ nodeKind) {
		if hasVisibleContent(n) {
			blocks = append(blocks, n)
		}
	})

	for idx, n := range blocks {
		spacer := &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
			Attr: []html.Attribute{
				{Key: "class", Val: "cc-spacer"},
				{Key: attrSpacer, Val: strconv.Itoa(idx)},
			},
		}
		n.Parent.InsertBefore(spacer, n)

		setAttr(n, attrBlock, strconv.Itoa(idx))
		setAttr(n, attrShared, boolAttr(isSharedBlock(n)))
	}
	return len(blocks)
}

// isSharedBlock counts highlight-marked characters inside the block:
// shared means the migrated count (excluding moved content) is positive and
// at least as large as the not-migrated count.
func isSharedBlock(n *html.Node) bool {
	migrated, notMigrated := countMarkedChars(n)
	return migrated > 0 && migrated >= notMigrated
}

func countMarkedChars(n *html.Node) (migrated, notMigrated int) {
	var walk func(n *html.Node, class Class)
	walk = func(n *html.Node, class Class) {
		if n.Type == html.TextNode {
			count := 0
			for _, r := range n.Data {
				if !unicode.IsSpace(r) {
					count++
				}
			}
			switch class {
			case ClassMigrated:
				migrated += count
			case ClassNotMigrated:
				notMigrated += count
			}
			return
		}
		if n.Type == html.ElementNode && n.Data == "span" {
			classes := getAttr(n, "class")
			switch {
			case strings.Contains(classes, classMoved):
				class = ClassMoved
			case strings.Contains(classes, classNotMigrated):
				class = ClassNotMigrated
			case strings.Contains(classes, classMigrated):
				class = ClassMigrated
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, class)
		}
	}
	walk(n, ClassNone)
	return migrated, notMigrated
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func addClass(n *html.Node, class string) {
	existing := getAttr(n, "class")
	if existing == "" {
		setAttr(n, "class", class)
		return
	}
	for _, c := range strings.Fields(existing) {
		if c == class {
			return
		}
	}
	setAttr(n, "class", existing+" "+class)
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
