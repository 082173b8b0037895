package annotate

import (
	"bytes"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

var (
	minifier *minify.M
	once     sync.Once
)

func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", minhtml.Minify)
	})
	return minifier
}

// stylesheet is the fixed stylesheet embedded in every annotated document.
// The two display modes are mutually exclusive: one highlights migrated
// content, the other highlights not-migrated content. Moved content carries
// cc-moved as a marker only; it renders exactly like migrated content.
const stylesheet = `
.cc-spacer { height: 0; }
body.cc-mode-migrated span.cc-migrated { background: #c9f0c4; }
body.cc-mode-migrated img.cc-migrated { outline: 3px solid #3aa63a; }
body.cc-mode-not-migrated span.cc-not-migrated { background: #f5c6c6; }
body.cc-mode-not-migrated img.cc-not-migrated { outline: 3px solid #c43d3d; }
`

// surfaceScript is the in-page handler implementing the surface side of the
// sync protocol. It connects back to the coordinator's websocket endpoint,
// answers measure requests with content-block measurements, applies spacer
// heights, and relays user scrolls. A programmatic scrollTo sets a suppress
// flag so the resulting scroll event is not re-reported as a user scroll.
const surfaceScript = `
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws?session={{SESSION}}&side={{SIDE}}");
  var side = "{{SIDE}}";
  var enabled = false;
  var suppressScroll = false;

  function send(msg) {
    if (ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify(msg));
    }
  }

  function measure() {
    var blocks = [];
    document.querySelectorAll("[data-cc-block]").forEach(function (el) {
      blocks.push({
        idx: parseInt(el.getAttribute("data-cc-block"), 10),
        top: el.getBoundingClientRect().top + window.scrollY,
        height: el.offsetHeight,
        shared: el.getAttribute("data-cc-shared") === "true",
        text: el.textContent
      });
    });
    send({ type: "measurements", side: side, blocks: blocks });
  }

  function applySpacers(spacers) {
    document.querySelectorAll("[data-cc-spacer]").forEach(function (el) {
      var idx = el.getAttribute("data-cc-spacer");
      var h = spacers && spacers[idx] ? spacers[idx] : 0;
      el.style.height = h + "px";
    });
  }

  ws.onmessage = function (event) {
    var msg;
    try { msg = JSON.parse(event.data); } catch (e) { return; }
    switch (msg.type) {
      case "enable":
        side = msg.side;
        enabled = true;
        break;
      case "disable":
        enabled = false;
        break;
      case "measure":
        measure();
        break;
      case "applySpacers":
        applySpacers(msg.spacers);
        break;
      case "clearSpacers":
        applySpacers(null);
        break;
      case "scrollTo":
        suppressScroll = true;
        window.scrollTo(0, msg.offset);
        break;
      case "setHighlightMode":
        document.body.className = "cc-mode-" + msg.mode;
        break;
      default:
        break;
    }
  };

  window.addEventListener("scroll", function () {
    if (suppressScroll) {
      suppressScroll = false;
      return;
    }
    if (!enabled) {
      return;
    }
    send({ type: "scrolled", side: side, offset: window.scrollY });
  });
})();
`

// wrapDocument embeds an annotated fragment in a complete, self-contained
// document carrying the fixed stylesheet and the surface message handler.
// A nil fragment still yields a valid empty document.
func wrapDocument(fragment *html.Node, sessionID string, side viewsync.Side) string {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element("html", atom.Html)
	doc.AppendChild(root)

	head := element("head", atom.Head)
	meta := element("meta", atom.Meta)
	setAttr(meta, "charset", "utf-8")
	head.AppendChild(meta)
	style := element("style", atom.Style)
	style.AppendChild(&html.Node{Type: html.TextNode, Data: stylesheet})
	head.AppendChild(style)
	root.AppendChild(head)

	body := element("body", atom.Body)
	setAttr(body, "class", "cc-mode-migrated")
	if fragment != nil {
		for c := fragment.FirstChild; c != nil; {
			next := c.NextSibling
			fragment.RemoveChild(c)
			body.AppendChild(c)
			c = next
		}
	}
	script := element("script", atom.Script)
	js := strings.ReplaceAll(surfaceScript, "{{SESSION}}", sessionID)
	js = strings.ReplaceAll(js, "{{SIDE}}", string(side))
	script.AppendChild(&html.Node{Type: html.TextNode, Data: js})
	body.AppendChild(script)
	root.AppendChild(body)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ""
	}
	rendered := buf.String()

	minified, err := getMinifier().String("text/html", rendered)
	if err != nil {
		return rendered
	}
	return minified
}

func element(tag string, a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: a}
}
