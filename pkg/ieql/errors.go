package ieql

import (
	"errors"
	"fmt"
)

// InvalidPatternError reports a pattern that failed to compile, at
// query or group compile time. Where identifies the
// offending location: "pattern" (Pattern.Compile), "scope"
// (Query.Validate), "query:<id> scope" (pkg/fusion.CompileSingle), or
// "query:<id> trigger:<trigger_id>"; a scope pattern rejected by the
// fused group build is reported as "query:<id> trigger:scope".
type InvalidPatternError struct {
	Where   string
	Content string
	Cause   error
}

func (e *InvalidPatternError) Error() string {
	if e.Content != "" {
		return fmt.Sprintf("invalid pattern at %s (%q): %v", e.Where, e.Content, e.Cause)
	}
	return fmt.Sprintf("invalid pattern at %s: %v", e.Where, e.Cause)
}

func (e *InvalidPatternError) Unwrap() error { return e.Cause }

// InvalidQueryError reports a structural defect in a Query caught by
// Query.Validate. Cause is set when the defect corresponds
// to one of the taxonomy's sentinel errors (e.g. ErrEmptyTriggerID), so
// callers can errors.Is/errors.As past the query-id context.
type InvalidQueryError struct {
	QueryID string
	Reason  string
	Cause   error
}

func (e *InvalidQueryError) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("invalid query %q: %s", e.QueryID, e.Reason)
	}
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *InvalidQueryError) Unwrap() error { return e.Cause }

// EmptyTriggerID reports a Trigger constructed with an empty id within
// the named query, wrapping the ErrEmptyTriggerID sentinel.
func EmptyTriggerID(queryID string) error {
	return &InvalidQueryError{QueryID: queryID, Reason: ErrEmptyTriggerID.Error(), Cause: ErrEmptyTriggerID}
}

// DuplicateTriggerID reports a repeated trigger id within one query.
func DuplicateTriggerID(queryID, triggerID string) error {
	return &InvalidQueryError{QueryID: queryID, Reason: fmt.Sprintf("duplicate trigger id %q", triggerID)}
}

// UnresolvedTrigger reports a TriggerRef that names no trigger in the
// owning query.
func UnresolvedTrigger(queryID, triggerID string) error {
	return &InvalidQueryError{QueryID: queryID, Reason: fmt.Sprintf("unresolved trigger reference %q", triggerID)}
}

// InvalidResponse reports a response descriptor inconsistency, e.g.
// requesting Url or Excerpt with ResponseKind Partial.
func InvalidResponse(queryID, reason string) error {
	return &InvalidQueryError{QueryID: queryID, Reason: fmt.Sprintf("invalid response descriptor: %s", reason)}
}

// IncompatibleGroupError reports queries that cannot be merged into one
// CompiledQueryGroup, e.g. two queries sharing the same non-empty id.
type IncompatibleGroupError struct {
	Reason string
}

func (e *IncompatibleGroupError) Error() string {
	return fmt.Sprintf("incompatible query group: %s", e.Reason)
}

// ErrScanAborted reports cancellation mid-scan. It is not a failure of
// the document being scanned.
var ErrScanAborted = errors.New("scan aborted")

// ErrEmptyTriggerID marks a Trigger constructed with an empty id.
var ErrEmptyTriggerID = errors.New("trigger id must not be empty")
