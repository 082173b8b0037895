// Package extract pulls the comparable content out of a fetched HTML page:
// a sanitized fragment safe to re-render, the whitespace-normalized plain
// text the differ consumes, and the page's image references.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/sunzi-skynet/contentcheck-3000/internal/imagematch"
)

// DefaultMaxTextLen bounds the extracted plain text. The word-level diff is
// worst-case quadratic, so the cap is what keeps comparison cost bounded.
const DefaultMaxTextLen = 200000

// Content is the extraction result for one page.
type Content struct {
	Fragment *html.Node
	Text     string
	Title    string
	Images   []imagematch.Ref
}

var dropTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "object": true, "embed": true, "link": true,
	"meta": true, "svg": true, "canvas": true, "form": true,
	"button": true, "input": true, "select": true, "textarea": true,
}

var paragraphTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "li": true, "td": true, "th": true, "blockquote": true,
	"pre": true, "dt": true, "dd": true, "figcaption": true, "caption": true,
	"div": true, "section": true, "article": true, "aside": true,
	"header": true, "footer": true, "tr": true, "table": true, "ul": true,
	"ol": true, "br": true, "main": true, "nav": true,
}

// Options tunes extraction.
type Options struct {
	MaxTextLen int
}

// Parse reads a page, locates its main content region, sanitizes it and
// flattens its text. base resolves relative media addresses; it may be nil.
func Parse(r io.Reader, base *url.URL, opts Options) (*Content, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	maxLen := opts.MaxTextLen
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLen
	}

	region := findContentRegion(doc)
	if region == nil {
		// A document with no body still yields valid empty content.
		return &Content{Fragment: &html.Node{Type: html.ElementNode, Data: "div"}}, nil
	}

	sanitize(region, base)

	content := &Content{
		Fragment: region,
		Title:    findTitle(doc),
	}
	content.Text = truncateRunes(flattenText(region), maxLen)
	content.Images = collectImages(region)
	return content, nil
}

// findContentRegion prefers an explicit main-content element and falls back
// to the whole body.
func findContentRegion(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "main" || n.Data == "article" || attrValue(n, "role") == "main"
	}); n != nil {
		return n
	}
	return findFirst(doc, func(n *html.Node) bool { return n.Data == "body" })
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func findTitle(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

// sanitize strips non-content elements, event-handler attributes and
// executable URL schemes, and resolves media addresses to absolute form.
func sanitize(n *html.Node, base *url.URL) {
	var doomed []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && dropTags[c.Data] {
			doomed = append(doomed, c)
			continue
		}
		sanitize(c, base)
	}
	for _, c := range doomed {
		n.RemoveChild(c)
	}

	if n.Type != html.ElementNode {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case strings.HasPrefix(key, "on"):
			continue
		case key == "href" || key == "src":
			val := resolveURL(a.Val, base)
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "javascript:") {
				continue
			}
			a.Val = val
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func resolveURL(raw string, base *url.URL) string {
	if base == nil {
		return raw
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return base.ResolveReference(u).String()
}

// flattenText concatenates the region's text nodes, with paragraph-level
// boundaries kept as single newlines. Adjacent inline elements concatenate
// without inserted spaces; the annotator depends on the same behavior.
func flattenText(root *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type != html.ElementNode {
			return
		}
		boundary := paragraphTags[n.Data]
		if boundary {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if boundary {
			b.WriteString("\n")
		}
	}
	walk(root)
	return normalizeText(b.String())
}

// normalizeText NFC-normalizes, collapses in-line whitespace and collapses
// blank lines, producing the differ's canonical text form.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == maxLen {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		count++
	}
	return s
}

func collectImages(root *html.Node) []imagematch.Ref {
	var refs []imagematch.Ref
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			if src := attrValue(n, "src"); src != "" {
				refs = append(refs, imagematch.Ref{
					Address: src,
					AltText: attrValue(n, "alt"),
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return refs
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
