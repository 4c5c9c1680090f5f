package ieql

// Query bundles URL-scoping rules, named pattern triggers, a boolean
// threshold over those triggers, and a response descriptor. A Query
// owns its Triggers and Threshold. It is constructed by the
// external parser, validated here, then frozen: mutation after
// compilation (pkg/fusion) is forbidden by convention — callers must
// not mutate a Query once it has been handed to a compiler.
type Query struct {
	ID        string
	Triggers  []Trigger
	Scope     Scope
	Threshold Threshold
	Response  ResponseDescriptor
}

// Validate checks the invariants a Query must satisfy before it may be
// compiled: trigger-id uniqueness, every TriggerRef resolving to a
// trigger defined in this query, response descriptor consistency, and
// the scope and trigger patterns compiling.
func (q Query) Validate() error {
	seen := make(map[string]struct{}, len(q.Triggers))
	for _, t := range q.Triggers {
		if t.ID == "" {
			return EmptyTriggerID(q.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return DuplicateTriggerID(q.ID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	if err := validateThresholdRefs(q.ID, q.Threshold, seen); err != nil {
		return err
	}

	if err := q.Response.validate(); err != nil {
		if ie, ok := err.(*InvalidQueryError); ok {
			ie.QueryID = q.ID
		}
		return err
	}

	if _, err := q.Scope.Pattern.Compile(); err != nil {
		return &InvalidPatternError{Where: "scope", Content: q.Scope.Pattern.Content, Cause: err}
	}

	for _, t := range q.Triggers {
		if _, err := t.Pattern.Compile(); err != nil {
			return &InvalidPatternError{
				Where:   "query:" + q.ID + " trigger:" + t.ID,
				Content: t.Pattern.Content,
				Cause:   err,
			}
		}
	}

	return nil
}

func validateThresholdRefs(queryID string, node Threshold, triggerIDs map[string]struct{}) error {
	if node.IsRef {
		if _, ok := triggerIDs[node.Ref]; !ok {
			return UnresolvedTrigger(queryID, node.Ref)
		}
		return nil
	}
	for _, child := range node.Considers {
		if err := validateThresholdRefs(queryID, child, triggerIDs); err != nil {
			return err
		}
	}
	return nil
}
