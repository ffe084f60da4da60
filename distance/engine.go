package distance

import (
	"fmt"

	"blockdreamer/types"
	"blockdreamer/utils"
)

// Engine scores how structurally different the blocks produced for one slot are.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	Weights        Weights
	SecondsPerSlot uint64
}

func NewEngine(weights Weights, secondsPerSlot uint64) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{Weights: weights, SecondsPerSlot: secondsPerSlot}
}

// SubScores returns every feature's distance in [0, 1] and the raw attestation matching cost.
func (e *Engine) SubScores(a, b *Features) (map[types.Feature]float64, int) {
	att, attRaw := attestationsDistance(a.Attestations, b.Attestations)
	return map[types.Feature]float64{
		types.FeatureGraffiti:      equalityDistance(a.Graffiti, b.Graffiti),
		types.FeatureFeeRecipient:  equalityDistance(a.FeeRecipient, b.FeeRecipient),
		types.FeatureParentRoot:    equalityDistance(&a.ParentRoot, &b.ParentRoot),
		types.FeatureTxOrdering:    orderingDistance(a.TxHashes, b.TxHashes),
		types.FeatureTxInclusion:   inclusionDistance(a.TxHashes, b.TxHashes),
		types.FeatureAttestations:  att,
		types.FeatureSyncAggregate: syncDistance(a.SyncBits, b.SyncBits),
		types.FeatureTimestamp:     timestampDistance(a.Timestamp, b.Timestamp, e.SecondsPerSlot),
	}, attRaw
}

// Combine sums weighted sub-scores in the fixed order of types.Features.
func (e *Engine) Combine(sub map[types.Feature]float64) float64 {
	total := 0.0
	for _, f := range types.Features {
		total += e.Weights[f] * sub[f]
	}
	return total
}

// Compare scores the blocks nodeA and nodeB produced. Blocks that cannot be compared yield an
// incomparable score carrying the reason.
func (e *Engine) Compare(nodeA string, a *types.BeaconBlock, nodeB string, b *types.BeaconBlock) *types.DistanceScore {
	score := &types.DistanceScore{NodeA: nodeA, NodeB: nodeB, WeightsVersion: WeightsVersion}
	if a != nil {
		score.Slot = a.Slot
	}

	fa, errA := Extract(a)
	fb, errB := Extract(b)
	if errA != nil || errB != nil {
		score.Reason = fmt.Sprintf("%s (%v, %v)", utils.MISSING_BLOCK, errA, errB)
		return score
	}
	return e.compareFeatures(score, fa, fb)
}

func (e *Engine) compareFeatures(score *types.DistanceScore, fa, fb *Features) *types.DistanceScore {
	if fa.Slot != fb.Slot {
		score.Reason = fmt.Sprintf("%s (%d, %d)", utils.SLOT_MISMATCH, fa.Slot, fb.Slot)
		return score
	}
	sub, attRaw := e.SubScores(fa, fb)
	score.Slot = fa.Slot
	score.Comparable = true
	score.SubScores = sub
	score.AttestationRaw = attRaw
	score.Score = e.Combine(sub)
	return score
}

// ComputePairs scores every pair of successful results in the given order, NodeA always being
// the earlier node. It returns a reason instead when fewer than two blocks are available.
func (e *Engine) ComputePairs(results []*types.FetchResult) ([]*types.DistanceScore, string) {
	type candidate struct {
		node     string
		features *Features
		err      error
	}

	candidates := make([]candidate, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		f, err := Extract(r.Block)
		candidates = append(candidates, candidate{node: r.Node, features: f, err: err})
	}
	if len(candidates) < 2 {
		return nil, utils.FEWER_THAN_TWO_BLOCKS
	}

	scores := make([]*types.DistanceScore, 0, len(candidates)*(len(candidates)-1)/2)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			score := &types.DistanceScore{NodeA: a.node, NodeB: b.node, WeightsVersion: WeightsVersion}
			if a.err != nil || b.err != nil {
				score.Reason = fmt.Sprintf("%s (%v, %v)", utils.MISSING_BLOCK, a.err, b.err)
				scores = append(scores, score)
				continue
			}
			score.Slot = a.features.Slot
			scores = append(scores, e.compareFeatures(score, a.features, b.features))
		}
	}
	return scores, ""
}
