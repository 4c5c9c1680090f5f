// Package fusion compiles validated queries into a shared multi-pattern
// scanner per content kind, so a document is scanned once per kind no
// matter how many queries share the group.
package fusion

import (
	"github.com/ieql/engine/pkg/ieql"
	"github.com/ieql/engine/pkg/threshold"
)

// CompilingQuery is the output of compiling one validated Query in
// isolation: a compiled URL-scope matcher, the query's triggers in
// declaration order, and a threshold tree resolved to dense local
// trigger indices. It is an intermediate value consumed by Build; it is
// not used to scan documents on its own.
type CompilingQuery struct {
	Query *ieql.Query

	ScopeMatcher ieql.Matcher
	TriggerIDs   []string
	Threshold    threshold.Compiled
}

// CompileSingle compiles one already-validated query. Callers must call
// Query.Validate first; CompileSingle re-surfaces a scope pattern
// compile failure as InvalidPatternError but does not compile the
// trigger patterns or repeat the structural checks Validate already
// performed.
func CompileSingle(q *ieql.Query) (CompilingQuery, error) {
	scopeMatcher, err := q.Scope.Pattern.Compile()
	if err != nil {
		return CompilingQuery{}, &ieql.InvalidPatternError{
			Where:   "query:" + q.ID + " scope",
			Content: q.Scope.Pattern.Content,
			Cause:   err,
		}
	}

	index := make(map[string]int, len(q.Triggers))
	ids := make([]string, len(q.Triggers))
	for i, t := range q.Triggers {
		index[t.ID] = i
		ids[i] = t.ID
	}

	compiledThreshold, err := threshold.Compile(q.ID, q.Threshold, index)
	if err != nil {
		return CompilingQuery{}, err
	}

	return CompilingQuery{
		Query:        q,
		ScopeMatcher: scopeMatcher,
		TriggerIDs:   ids,
		Threshold:    compiledThreshold,
	}, nil
}
