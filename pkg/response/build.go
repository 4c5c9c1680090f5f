// Package response builds the Response records emitted for matching
// queries: domain extraction and excerpt windowing are pure functions
// of a document, a witness span, and a response descriptor.
package response

import (
	"net/url"
	"strings"

	"github.com/ieql/engine/pkg/ieql"
)

// DefaultExcerptWindowBytes is the number of bytes of context kept on
// each side of a witness span when building an excerpt, unless a group
// configuration overrides it.
const DefaultExcerptWindowBytes = 64

// Span identifies a witness match's location in the content that was
// scanned (raw bytes or extracted text, whichever the triggering
// query's scope content kind selected).
type Span struct {
	Start, End int
}

// Build constructs the Response for a matching query. scannedContent is
// the bytes the trigger scan ran against (raw or extracted text);
// excerptSpan is the first witness span, if any and if the response
// requested an Excerpt. windowBytes of zero uses
// DefaultExcerptWindowBytes.
func Build(doc ieql.Document, desc ieql.ResponseDescriptor, queryID string, excerptSpan *Span, scannedContent []byte, windowBytes int) ieql.Response {
	r := ieql.Response{QueryID: queryID, Kind: desc.Kind}

	if desc.Wants(ieql.IncludeURL) {
		r = r.WithURL(doc.URL)
	}
	if desc.Wants(ieql.IncludeDomain) {
		if d, ok := domain(doc.URL); ok {
			r = r.WithDomain(d)
		}
	}
	if desc.Wants(ieql.IncludeMime) {
		r = r.WithMime(doc.Mime)
	}
	if desc.Wants(ieql.IncludeExcerpt) && excerptSpan != nil {
		r = r.WithExcerpt(excerpt(scannedContent, *excerptSpan, windowBytes))
	}
	if desc.Wants(ieql.IncludeFullContent) {
		r = r.WithFullContent(doc.Content)
	}

	return r
}

// domain derives the Domain field from a document URL: the host
// component without any port, case-folded, with a leading "www."
// stripped. An unparsable URL (or one with no host) yields ok=false.
func domain(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return strings.TrimPrefix(host, "www."), true
}

// excerpt extracts span plus windowBytes of context on each side,
// clamped to content's boundaries.
func excerpt(content []byte, span Span, windowBytes int) string {
	if windowBytes <= 0 {
		windowBytes = DefaultExcerptWindowBytes
	}

	start := span.Start - windowBytes
	if start < 0 {
		start = 0
	}
	end := span.End + windowBytes
	if end > len(content) {
		end = len(content)
	}
	if start > len(content) {
		start = len(content)
	}
	if end < start {
		end = start
	}
	return string(content[start:end])
}
