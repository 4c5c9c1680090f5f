// Package ieql defines the IEQL query data model: patterns, triggers,
// scopes, threshold trees, response descriptors, and the Query value
// that owns them.
//
// Pattern matching behavior:
//
//   - Literal: byte-equal substring match, anywhere in the input.
//     Never fails to compile.
//   - Regex: unanchored regular expression match, anywhere in the
//     input. Must compile under the engine's dialect (Go's RE2-based
//     regexp) or Pattern.Compile returns InvalidPatternError.
package ieql

import (
	"bytes"
	"regexp"
)

// Kind identifies how a Pattern's content is interpreted.
type Kind int

const (
	Literal Kind = iota
	Regex
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Pattern is a content string plus the kind that determines how it is
// matched. Patterns are immutable once constructed.
type Pattern struct {
	Content string
	Kind    Kind
}

// Matcher is a single-pattern matcher produced by Pattern.Compile. It
// is used for per-query validation and standalone matching; the fused
// multi-pattern scan used during group evaluation (pkg/fusion) is a
// separate execution path that shares the same semantics.
type Matcher interface {
	// FindAny reports whether the pattern matches anywhere in input.
	FindAny(input []byte) bool

	// FindFirst returns the first (leftmost-earliest) match span, or
	// ok=false if there is no match.
	FindFirst(input []byte) (start, end int, ok bool)
}

type literalMatcher struct {
	content []byte
}

func (m *literalMatcher) FindAny(input []byte) bool {
	return bytes.Contains(input, m.content)
}

func (m *literalMatcher) FindFirst(input []byte) (int, int, bool) {
	idx := bytes.Index(input, m.content)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(m.content), true
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m *regexMatcher) FindAny(input []byte) bool {
	return m.re.Match(input)
}

func (m *regexMatcher) FindFirst(input []byte) (int, int, bool) {
	loc := m.re.FindIndex(input)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

// Compile compiles the pattern into a standalone Matcher. Literal
// patterns always succeed; Regex patterns fail with InvalidPatternError
// if the content does not compile under Go's regexp dialect.
func (p Pattern) Compile() (Matcher, error) {
	switch p.Kind {
	case Literal:
		return &literalMatcher{content: []byte(p.Content)}, nil
	case Regex:
		re, err := regexp.Compile(p.Content)
		if err != nil {
			return nil, &InvalidPatternError{Where: "pattern", Cause: err}
		}
		return &regexMatcher{re: re}, nil
	default:
		return nil, &InvalidPatternError{Where: "pattern", Cause: errUnknownKind}
	}
}

var errUnknownKind = patternKindError("unrecognized pattern kind")

type patternKindError string

func (e patternKindError) Error() string { return string(e) }

// HyperscanExpression returns the expression to feed a fused
// multi-pattern automaton (pkg/fusion) for this pattern: Regex content
// verbatim, Literal content escaped with regexp.QuoteMeta so a single
// automaton can serve both kinds.
func (p Pattern) HyperscanExpression() string {
	if p.Kind == Literal {
		return regexp.QuoteMeta(p.Content)
	}
	return p.Content
}
