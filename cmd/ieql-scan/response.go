package main

import "github.com/ieql/engine/pkg/ieql"

// wireResponseOutput is the JSON-line shape printed to stdout for each
// emitted Response. Fields are omitted when the corresponding Response
// field was never populated, mirroring Response's Has* accessors.
type wireResponseOutput struct {
	QueryID     string `json:"query_id"`
	Kind        string `json:"kind"`
	URL         string `json:"url,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Mime        string `json:"mime,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	FullContent []byte `json:"full_content,omitempty"`
}

func toWireResponse(r ieql.Response) wireResponseOutput {
	out := wireResponseOutput{QueryID: r.QueryID, Kind: r.Kind.String()}
	if r.HasURL() {
		out.URL = r.URL
	}
	if r.HasDomain() {
		out.Domain = r.Domain
	}
	if r.HasMime() {
		out.Mime = r.Mime
	}
	if r.HasExcerpt() {
		out.Excerpt = r.Excerpt
	}
	if r.HasFullContent() {
		out.FullContent = r.FullContent
	}
	return out
}
