package threshold

import "github.com/ieql/engine/pkg/ieql"

// Compiled is a threshold tree with every TriggerRef resolved to a
// dense local trigger index within the owning query. Trees are not
// flattened; nested groups remain nested.
type Compiled struct {
	isRef     bool
	index     int
	considers []Compiled
	requires  uint32
	inverse   bool
}

// Compile resolves every TriggerRef in root against index, a map from
// trigger id to its dense local index within the owning query. It
// returns ieql.UnresolvedTrigger if a reference cannot be resolved
// (this should already have been caught by Query.Validate, but
// pkg/fusion calls it again on an already-validated tree, so failure
// here indicates caller error, not a document-time condition).
func Compile(queryID string, root ieql.Threshold, index map[string]int) (Compiled, error) {
	if root.IsRef {
		i, ok := index[root.Ref]
		if !ok {
			return Compiled{}, ieql.UnresolvedTrigger(queryID, root.Ref)
		}
		return Compiled{isRef: true, index: i}, nil
	}

	children := make([]Compiled, len(root.Considers))
	for i, c := range root.Considers {
		compiled, err := Compile(queryID, c, index)
		if err != nil {
			return Compiled{}, err
		}
		children[i] = compiled
	}
	return Compiled{considers: children, requires: root.Requires, inverse: root.Inverse}, nil
}

// Eval evaluates the tree against a fired-bitset over the query's
// local trigger indices:
//
//	eval(TriggerRef(i), F)        = (F[i], {i if F[i] else ∅})
//	eval(Group{cs,req,inv}, F):
//	    results = [eval(c, F) for c in cs]
//	    satisfied_count = count(r.value for r in results)
//	    value = (satisfied_count >= req) XOR inv
//	    witness = union of r.witness for satisfied results if value else ∅
//
// Edge cases: requires == 0 is always satisfied unless inverted, and
// its witness is the union of the satisfied children's witnesses (empty
// when Considers is empty or no child matched); requires exceeding
// len(Considers), including any requires > 0 over an empty Considers,
// is never satisfied unless inverted.
//
// Witness collection always runs; callers that don't need an excerpt
// may ignore the returned Bitset. numTriggers must match the size the
// caller's fired Bitset and the returned witness Bitset are sized to.
func (c Compiled) Eval(fired Bitset, numTriggers int) (bool, Bitset) {
	if c.isRef {
		witness := NewBitset(numTriggers)
		if fired.Get(c.index) {
			witness.Set(c.index)
			return true, witness
		}
		return false, witness
	}

	satisfied := 0
	childWitnesses := make([]Bitset, 0, len(c.considers))
	for _, child := range c.considers {
		matched, witness := child.Eval(fired, numTriggers)
		if matched {
			satisfied++
			childWitnesses = append(childWitnesses, witness)
		}
	}

	value := (uint32(satisfied) >= c.requires) != c.inverse

	result := NewBitset(numTriggers)
	if value {
		for _, w := range childWitnesses {
			result.Union(w)
		}
	}
	return value, result
}
