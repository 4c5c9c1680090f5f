package ieql

// Threshold is a node in the boolean composition tree over a query's
// triggers. It is a tagged sum of two variants, no dynamic dispatch:
//
//   - a TriggerRef node has IsRef == true and Ref set to a trigger id
//     defined in the owning query.
//   - a Group node has IsRef == false; Considers holds its children,
//     Requires is the N-of-M count, and Inverse negates the result.
//
// Requires == 0 means "always satisfied"; Requires > len(Considers)
// means "never satisfied". Both are legal and useful as inverted
// constants.
type Threshold struct {
	IsRef bool

	// Set when IsRef is true.
	Ref string

	// Set when IsRef is false.
	Considers []Threshold
	Requires  uint32
	Inverse   bool
}

// TriggerRef constructs a leaf node referencing a trigger id.
func TriggerRef(id string) Threshold {
	return Threshold{IsRef: true, Ref: id}
}

// Group constructs an internal N-of-M node.
func Group(considers []Threshold, requires uint32, inverse bool) Threshold {
	return Threshold{Considers: considers, Requires: requires, Inverse: inverse}
}
