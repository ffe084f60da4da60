package distance

import (
	"sort"

	"blockdreamer/types"
)

// IndelCost is charged for an attestation present on one side only, on top of its set bits.
// It equals the largest possible position delta (max attestations per block).
const IndelCost = 128

type DeltaKind uint8

const (
	// Modify matches an attestation on the left with one on the right
	Modify DeltaKind = iota
	InsertLeft
	InsertRight
)

// Delta is one step of the cheapest edit turning the left attestation list into the right one.
type Delta struct {
	Kind  DeltaKind
	Left  int // position in the left block, -1 for InsertRight
	Right int // position in the right block, -1 for InsertLeft

	PosDistance int // |Left - Right| for Modify
	BitDistance int // differing aggregation bits for Modify
	SetBits     int // aggregation bits of the inserted attestation
}

func (d Delta) Cost() int {
	if d.Kind == Modify {
		return d.PosDistance + d.BitDistance
	}
	return d.SetBits + IndelCost
}

type indexedAttestation struct {
	pos int
	att *types.Attestation
}

func groupByKey(atts []*types.Attestation) map[types.AttestationKey][]indexedAttestation {
	groups := make(map[types.AttestationKey][]indexedAttestation)
	for i, a := range atts {
		k := a.Key()
		groups[k] = append(groups[k], indexedAttestation{pos: i, att: a})
	}
	return groups
}

// AttestationDeltas matches attestations with equal data (and committee bits) between the two
// lists at minimum total cost. Only attestations with identical data are comparable, so each
// group is solved independently.
func AttestationDeltas(left, right []*types.Attestation) []Delta {
	lg := groupByKey(left)
	rg := groupByKey(right)

	keys := make(map[types.AttestationKey]struct{}, len(lg)+len(rg))
	for k := range lg {
		keys[k] = struct{}{}
	}
	for k := range rg {
		keys[k] = struct{}{}
	}

	deltas := make([]Delta, 0, max(len(left), len(right)))
	for k := range keys {
		deltas = append(deltas, matchGroup(lg[k], rg[k])...)
	}
	sortDeltas(deltas)
	return deltas
}

// AttestationDistance is the total cost of AttestationDeltas.
func AttestationDistance(left, right []*types.Attestation) int {
	total := 0
	for _, d := range AttestationDeltas(left, right) {
		total += d.Cost()
	}
	return total
}

// attestationNorm is the cost of matching nothing: every attestation inserted on its side.
// Any matching costs at most this much, so distance/norm is in [0, 1].
func attestationNorm(left, right []*types.Attestation) int {
	total := 0
	for _, a := range left {
		total += int(a.AggregationBits.Count()) + IndelCost
	}
	for _, a := range right {
		total += int(a.AggregationBits.Count()) + IndelCost
	}
	return total
}

func matchGroup(l, r []indexedAttestation) []Delta {
	// Square matrix: rows beyond len(l) or columns beyond len(r) stand for insertions
	n := max(len(l), len(r))
	cost := make([][]int64, n)
	for i := 0; i < n; i++ {
		cost[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			cost[i][j] = int64(cellDelta(l, r, i, j).Cost())
		}
	}

	assignment, _ := minCostAssignment(cost)
	deltas := make([]Delta, 0, n)
	for i, j := range assignment {
		if i >= len(l) && j >= len(r) {
			continue
		}
		deltas = append(deltas, cellDelta(l, r, i, j))
	}
	return deltas
}

func cellDelta(l, r []indexedAttestation, i, j int) Delta {
	switch {
	case i < len(l) && j < len(r):
		return Delta{
			Kind:        Modify,
			Left:        l[i].pos,
			Right:       r[j].pos,
			PosDistance: absDiff(l[i].pos, r[j].pos),
			BitDistance: types.BitlistDiff(l[i].att.AggregationBits, r[j].att.AggregationBits),
		}
	case i < len(l):
		return Delta{Kind: InsertLeft, Left: l[i].pos, Right: -1, SetBits: int(l[i].att.AggregationBits.Count())}
	default:
		return Delta{Kind: InsertRight, Left: -1, Right: r[j].pos, SetBits: int(r[j].att.AggregationBits.Count())}
	}
}

// Sort by (left position, right position, kind) so the output does not depend on map order
func sortDeltas(deltas []Delta) {
	key := func(d Delta) (int, int) {
		switch d.Kind {
		case InsertLeft:
			return d.Left, d.Left
		case InsertRight:
			return d.Right, d.Right
		default:
			return d.Left, d.Right
		}
	}
	sort.Slice(deltas, func(i, j int) bool {
		ai, bi := key(deltas[i])
		aj, bj := key(deltas[j])
		if ai != aj {
			return ai < aj
		}
		if bi != bj {
			return bi < bj
		}
		return deltas[i].Kind < deltas[j].Kind
	})
}

func absDiff(x, y int) int {
	if x > y {
		return x - y
	}
	return y - x
}
