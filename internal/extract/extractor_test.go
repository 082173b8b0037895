package extract

import (
	"net/url"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, page string, base string) *Content {
	t.Helper()
	var baseURL *url.URL
	if base != "" {
		var err error
		baseURL, err = url.Parse(base)
		if err != nil {
			t.Fatalf("parse base: %v", err)
		}
	}
	content, err := Parse(strings.NewReader(page), baseURL, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return content
}

func TestParsePrefersMainRegion(t *testing.T) {
	content := mustParse(t, `<html><body>
		<nav>Site navigation</nav>
		<main><p>Actual content</p></main>
	</body></html>`, "")

	if content.Text != "Actual content" {
		t.Errorf("text = %q, want only the main region's content", content.Text)
	}
}

func TestParseFallsBackToBody(t *testing.T) {
	content := mustParse(t, `<html><body><p>Body content</p></body></html>`, "")
	if content.Text != "Body content" {
		t.Errorf("text = %q", content.Text)
	}
}

func TestParseStripsScriptsAndHandlers(t *testing.T) {
	content := mustParse(t, `<html><body>
		<p onclick="steal()">Hello</p>
		<script>evil()</script>
		<style>p { color: red }</style>
		<a href="javascript:alert(1)">link</a>
	</body></html>`, "")

	rendered := renderFragment(t, content.Fragment)
	for _, banned := range []string{"script", "onclick", "javascript:", "evil", "color"} {
		if strings.Contains(rendered, banned) {
			t.Errorf("sanitized fragment still contains %q: %s", banned, rendered)
		}
	}
	if !strings.Contains(content.Text, "Hello") {
		t.Errorf("text lost real content: %q", content.Text)
	}
	if strings.Contains(content.Text, "evil") {
		t.Errorf("script text leaked into extracted text: %q", content.Text)
	}
}

func TestParseResolvesRelativeAddresses(t *testing.T) {
	content := mustParse(t, `<html><body>
		<img src="/img/logo.png" alt="Logo">
		<a href="about.html">About</a>
	</body></html>`, "https://example.com/pages/index.html")

	if len(content.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(content.Images))
	}
	if content.Images[0].Address != "https://example.com/img/logo.png" {
		t.Errorf("image address = %q", content.Images[0].Address)
	}
	if content.Images[0].AltText != "Logo" {
		t.Errorf("alt text = %q", content.Images[0].AltText)
	}

	rendered := renderFragment(t, content.Fragment)
	if !strings.Contains(rendered, "https://example.com/pages/about.html") {
		t.Errorf("relative link not resolved: %s", rendered)
	}
}

func TestParseFlattensAdjacentInlineWithoutSpaces(t *testing.T) {
	content := mustParse(t, `<html><body><p><a>Home</a><a>Excel</a></p></body></html>`, "")
	if content.Text != "HomeExcel" {
		t.Errorf("text = %q, want HomeExcel (no inserted separator)", content.Text)
	}
}

func TestParseParagraphBoundaries(t *testing.T) {
	content := mustParse(t, `<html><body>
		<h1>Title</h1>
		<p>First   paragraph</p>
		<p>Second paragraph</p>
	</body></html>`, "")

	want := "Title\nFirst paragraph\nSecond paragraph"
	if content.Text != want {
		t.Errorf("text = %q, want %q", content.Text, want)
	}
}

func TestParseTruncatesLongText(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("word ", 100) + "</p></body></html>"
	content, err := Parse(strings.NewReader(page), nil, Options{MaxTextLen: 20})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len([]rune(content.Text)); got > 20 {
		t.Errorf("text length = %d runes, want at most 20", got)
	}
}

func TestParseTitle(t *testing.T) {
	content := mustParse(t, `<html><head><title> Page Title </title></head><body><p>x</p></body></html>`, "")
	if content.Title != "Page Title" {
		t.Errorf("title = %q", content.Title)
	}
}

func renderFragment(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}
