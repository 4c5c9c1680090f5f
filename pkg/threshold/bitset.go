// Package threshold compiles a query's ieql.Threshold tree into a form
// indexed by dense local trigger indices, and evaluates it against a
// fired-bitset to produce a match decision and witness set.
package threshold

import "math/bits"

const wordBits = 64

// Bitset is a small fixed-size bit vector over dense trigger indices.
// Clear allows reuse, but the scan path allocates new Bitsets for every
// document (pkg/fusion's Fired) and every evaluated node (Eval).
type Bitset struct {
	words []uint64
	n     int
}

// NewBitset allocates a Bitset able to hold n bits, all initially zero.
func NewBitset(n int) Bitset {
	return Bitset{words: make([]uint64, (n+wordBits-1)/wordBits), n: n}
}

// Len returns the number of bits the set was sized for.
func (b Bitset) Len() int { return b.n }

// Set marks bit i as fired.
func (b *Bitset) Set(i int) {
	b.words[i/wordBits] |= 1 << uint(i%wordBits)
}

// Get reports whether bit i is set.
func (b Bitset) Get(i int) bool {
	return b.words[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// Clear resets every bit to zero without reallocating, so the same
// Bitset can be reused across documents.
func (b *Bitset) Clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// Count returns the number of set bits.
func (b Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Union sets every bit that is set in other.
func (b *Bitset) Union(other Bitset) {
	for i := range b.words {
		if i < len(other.words) {
			b.words[i] |= other.words[i]
		}
	}
}

// Indices appends the set bit positions, in ascending order, to dst.
func (b Bitset) Indices(dst []int) []int {
	for i := 0; i < b.n; i++ {
		if b.Get(i) {
			dst = append(dst, i)
		}
	}
	return dst
}
