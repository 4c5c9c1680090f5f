// Package textextract adapts HTML documents into a plain-text
// representation for ContentKind.Text evaluation.
package textextract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Extractor converts a raw document body into a text representation. It
// returns ok=false when the body is not of a kind it can extract from,
// in which case the scan driver falls back to the document's raw bytes
// if partial text fallback is enabled and otherwise skips the Text scan.
type Extractor interface {
	Extract(content []byte) (text string, ok bool)
}

// HTMLExtractor extracts the concatenated text-node content of an HTML
// document, skipping the contents of script and style elements. It
// never fails to produce output: malformed markup is handled the same
// way html.Parse handles it elsewhere, by best-effort tree repair.
type HTMLExtractor struct{}

var skipText = map[string]bool{
	"script": true,
	"style":  true,
}

// Extract parses content as HTML and returns its visible text. ok is
// always true: even a fragment with no recognizable markup parses to a
// (possibly empty) text-only document.
func (HTMLExtractor) Extract(content []byte) (string, bool) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", false
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipText[strings.ToLower(n.Data)] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), true
}
