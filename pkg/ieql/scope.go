package ieql

// Scope gates whether a query considers a document: the Pattern is
// tested against the document URL, and Content selects which of the
// query's triggers' content kind this scope pairs with.
//
// The URL pattern is independent of Content: a URL is always text, so
// Content here only selects the trigger content-kind bucket the owning
// query is compiled into.
type Scope struct {
	Pattern Pattern
	Content ContentKind
}
