package annotate

import (
	"golang.org/x/net/html"

	"github.com/sunzi-skynet/contentcheck-3000/internal/imagematch"
)

// annotateSourceImages marks each source-side image migrated when the match
// report found it on the target page. Lookup falls back to filename-suffix
// comparison so content-delivery path rewrites still resolve.
func annotateSourceImages(root *html.Node, report imagematch.Report) {
	visitImages(root, func(img *html.Node, src string) {
		match, ok := report.Lookup(src)
		if ok && match.Status == imagematch.StatusFound {
			addClass(img, classMigrated)
		} else {
			addClass(img, classNotMigrated)
		}
	})
}

// annotateTargetImages marks a target-side image migrated when it is the
// recorded match target of any found source image.
func annotateTargetImages(root *html.Node, report imagematch.Report) {
	visitImages(root, func(img *html.Node, src string) {
		if report.MatchedOn(src) {
			addClass(img, classMigrated)
		} else {
			addClass(img, classNotMigrated)
		}
	})
}

func visitImages(root *html.Node, visit func(img *html.Node, src string)) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			visit(n, getAttr(n, "src"))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
