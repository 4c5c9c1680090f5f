package ieql

// ContentKind selects which representation of a Document a Scope or
// Trigger is evaluated against.
type ContentKind int

const (
	// Raw is the unmodified document byte stream.
	Raw ContentKind = iota
	// Text is extracted text; when the extractor reports no text, the
	// scan falls back to Raw only if partial text fallback is enabled.
	// The document's MIME type is not consulted.
	Text
)

func (c ContentKind) String() string {
	switch c {
	case Raw:
		return "raw"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}
