package types

import (
	"math/bits"

	"github.com/prysmaticlabs/go-bitfield"
)

// BitlistDiff counts the data bits set in exactly one of a and b. The length marker is not data,
// bits past the shorter list read as unset.
func BitlistDiff(a, b bitfield.Bitlist) int {
	n := max(a.Len(), b.Len())
	diff := 0
	for i := uint64(0); i < n; i++ {
		if a.BitAt(i) != b.BitAt(i) {
			diff++
		}
	}
	return diff
}

// BitvectorDiff is the Hamming distance of two bitvectors; the shorter one is zero-extended.
func BitvectorDiff(a, b []byte) int {
	n := max(len(a), len(b))
	diff := 0
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		diff += bits.OnesCount8(x ^ y)
	}
	return diff
}
