package ieql

// ResponseKind selects the overall shape of an emitted Response.
type ResponseKind int

const (
	Full ResponseKind = iota
	Partial
)

func (k ResponseKind) String() string {
	switch k {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// IncludeField names one optional field a ResponseDescriptor may ask
// to be populated.
type IncludeField int

const (
	IncludeURL IncludeField = iota
	IncludeDomain
	IncludeMime
	IncludeExcerpt
	IncludeFullContent
)

// ResponseDescriptor describes what to emit when a query matches a
// document. Url and Excerpt are only meaningful with Kind == Full;
// requesting either with Partial is rejected by Query.Validate.
type ResponseDescriptor struct {
	Kind    ResponseKind
	Include map[IncludeField]struct{}
}

// NewResponseDescriptor builds a descriptor from a field list.
func NewResponseDescriptor(kind ResponseKind, fields ...IncludeField) ResponseDescriptor {
	include := make(map[IncludeField]struct{}, len(fields))
	for _, f := range fields {
		include[f] = struct{}{}
	}
	return ResponseDescriptor{Kind: kind, Include: include}
}

// Wants reports whether the descriptor asks for the given field.
func (r ResponseDescriptor) Wants(f IncludeField) bool {
	_, ok := r.Include[f]
	return ok
}

// validate enforces the Full/Partial field restriction: Url and
// Excerpt are only meaningful under ResponseKind Full.
func (r ResponseDescriptor) validate() error {
	if r.Kind != Partial {
		return nil
	}
	if r.Wants(IncludeURL) {
		return InvalidResponse("", "include url is only valid with response kind full")
	}
	if r.Wants(IncludeExcerpt) {
		return InvalidResponse("", "include excerpt is only valid with response kind full")
	}
	return nil
}

// Response is one emitted match record. QueryID mirrors the
// owning query's optional id; fields beyond that are populated per the
// query's ResponseDescriptor by pkg/response.
type Response struct {
	QueryID     string
	Kind        ResponseKind
	URL         string
	Domain      string
	Mime        string
	Excerpt     string
	FullContent []byte

	hasURL, hasDomain, hasMime, hasExcerpt, hasFullContent bool
}

// HasURL, HasDomain, HasMime, HasExcerpt, and HasFullContent report
// whether the corresponding field was populated (as opposed to zero
// valued because it was never requested or unavailable).
func (r Response) HasURL() bool         { return r.hasURL }
func (r Response) HasDomain() bool      { return r.hasDomain }
func (r Response) HasMime() bool        { return r.hasMime }
func (r Response) HasExcerpt() bool     { return r.hasExcerpt }
func (r Response) HasFullContent() bool { return r.hasFullContent }

// WithURL, WithDomain, WithMime, WithExcerpt, and WithFullContent
// return a copy of r with the named field set and its presence flag
// marked. Used by pkg/response to build a Response field-by-field.
func (r Response) WithURL(v string) Response     { r.URL, r.hasURL = v, true; return r }
func (r Response) WithDomain(v string) Response  { r.Domain, r.hasDomain = v, true; return r }
func (r Response) WithMime(v string) Response    { r.Mime, r.hasMime = v, true; return r }
func (r Response) WithExcerpt(v string) Response { r.Excerpt, r.hasExcerpt = v, true; return r }
func (r Response) WithFullContent(v []byte) Response {
	r.FullContent, r.hasFullContent = v, true
	return r
}
