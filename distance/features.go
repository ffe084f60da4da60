package distance

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prysmaticlabs/go-bitfield"

	"blockdreamer/types"
)

// Features are the comparable parts of a block. A nil pointer or slice marks a feature the block
// did not carry; two unknowns are equal, an unknown never equals a known value.
type Features struct {
	Slot         types.Slot
	Graffiti     *[32]byte
	FeeRecipient *common.Address
	ParentRoot   common.Hash
	TxHashes     []common.Hash // nil when the payload is blinded or absent
	Attestations []*types.Attestation
	SyncBits     bitfield.Bitvector512 // nil without a sync aggregate
	Timestamp    *uint64
}

// Extract computes the features of block.
func Extract(block *types.BeaconBlock) (*Features, error) {
	if block == nil {
		return nil, errors.New("nil block")
	}
	f := &Features{
		Slot:         block.Slot,
		Graffiti:     block.Graffiti,
		ParentRoot:   block.ParentRoot,
		Attestations: block.Attestations,
	}
	if f.Attestations == nil {
		f.Attestations = []*types.Attestation{}
	}
	if block.SyncAggregate != nil {
		f.SyncBits = block.SyncAggregate.Bits
		if f.SyncBits == nil {
			f.SyncBits = bitfield.Bitvector512{}
		}
	}
	if ep := block.Execution; ep != nil {
		recipient := ep.FeeRecipient
		ts := ep.Timestamp
		f.FeeRecipient = &recipient
		f.Timestamp = &ts
		if ep.Transactions != nil {
			f.TxHashes = make([]common.Hash, 0, len(ep.Transactions))
			for _, tx := range ep.Transactions {
				f.TxHashes = append(f.TxHashes, crypto.Keccak256Hash(tx))
			}
		}
	}
	return f, nil
}

func equalityDistance[T comparable](a, b *T) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return 1
	case *a == *b:
		return 0
	default:
		return 1
	}
}

// dedupe keeps the first occurrence of each hash.
func dedupe(txs []common.Hash) []common.Hash {
	seen := mapset.NewThreadUnsafeSet[common.Hash]()
	res := make([]common.Hash, 0, len(txs))
	for _, h := range txs {
		if seen.Add(h) {
			res = append(res, h)
		}
	}
	return res
}

// orderingDistance is the normalized Kendall tau distance between the orders in which both blocks
// include their common transactions.
func orderingDistance(a, b []common.Hash) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return 1
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0 || len(b) == 0:
		return 1
	}

	a, b = dedupe(a), dedupe(b)
	posB := make(map[common.Hash]int, len(b))
	for i, h := range b {
		posB[h] = i
	}
	// Positions in b of the common transactions, in a's order
	seq := make([]int, 0, min(len(a), len(b)))
	for _, h := range a {
		if p, ok := posB[h]; ok {
			seq = append(seq, p)
		}
	}

	n := len(seq)
	switch {
	case n == 0:
		return 1
	case n == 1:
		return 0
	}
	inversions := countInversions(seq)
	return float64(inversions) / float64(n*(n-1)/2)
}

func countInversions(seq []int) int {
	if len(seq) < 2 {
		return 0
	}
	buf := make([]int, len(seq))
	work := append([]int(nil), seq...)
	return mergeCount(work, buf)
}

func mergeCount(s, buf []int) int {
	if len(s) < 2 {
		return 0
	}
	mid := len(s) / 2
	inv := mergeCount(s[:mid], buf[:mid]) + mergeCount(s[mid:], buf[mid:])

	i, j, k := 0, mid, 0
	for i < mid && j < len(s) {
		if s[i] <= s[j] {
			buf[k] = s[i]
			i++
		} else {
			buf[k] = s[j]
			inv += mid - i
			j++
		}
		k++
	}
	k += copy(buf[k:], s[i:mid])
	copy(buf[k:], s[j:])
	copy(s, buf[:len(s)])
	return inv
}

// inclusionDistance is the Jaccard distance between the transaction sets.
func inclusionDistance(a, b []common.Hash) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return 1
	}
	setA := mapset.NewThreadUnsafeSet(a...)
	setB := mapset.NewThreadUnsafeSet(b...)
	union := setA.Union(setB).Cardinality()
	if union == 0 {
		return 0
	}
	inter := setA.Intersect(setB).Cardinality()
	return 1 - float64(inter)/float64(union)
}

func syncDistance(a, b bitfield.Bitvector512) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return 1
	}
	n := max(len(a), len(b)) * 8
	if n == 0 {
		return 0
	}
	return float64(types.BitvectorDiff(a, b)) / float64(n)
}

func timestampDistance(a, b *uint64, secondsPerSlot uint64) float64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil || b == nil:
		return 1
	}
	var delta uint64
	if *a > *b {
		delta = *a - *b
	} else {
		delta = *b - *a
	}
	if delta == 0 {
		return 0
	}
	if secondsPerSlot == 0 || delta >= secondsPerSlot {
		return 1
	}
	return float64(delta) / float64(secondsPerSlot)
}

func attestationsDistance(a, b []*types.Attestation) (float64, int) {
	raw := AttestationDistance(a, b)
	norm := attestationNorm(a, b)
	if norm == 0 {
		return 0, raw
	}
	return float64(raw) / float64(norm), raw
}
