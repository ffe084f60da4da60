package types

import "time"

// Feature names a component of the block distance.
type Feature string

const (
	FeatureGraffiti      Feature = "graffiti"
	FeatureFeeRecipient  Feature = "fee_recipient"
	FeatureParentRoot    Feature = "parent_root"
	FeatureTxOrdering    Feature = "tx_ordering"
	FeatureTxInclusion   Feature = "tx_inclusion"
	FeatureAttestations  Feature = "attestations"
	FeatureSyncAggregate Feature = "sync_aggregate"
	FeatureTimestamp     Feature = "timestamp"
)

// Features in the order they are combined into a score.
var Features = []Feature{
	FeatureGraffiti,
	FeatureFeeRecipient,
	FeatureParentRoot,
	FeatureTxOrdering,
	FeatureTxInclusion,
	FeatureAttestations,
	FeatureSyncAggregate,
	FeatureTimestamp,
}

// DistanceScore is the distance between the blocks two nodes produced for the same slot.
// NodeA precedes NodeB in configured node order. An incomparable pair carries a Reason and no score.
type DistanceScore struct {
	Slot           Slot                `json:"slot"`
	NodeA          string              `json:"nodeA"`
	NodeB          string              `json:"nodeB"`
	Comparable     bool                `json:"comparable"`
	Reason         string              `json:"reason,omitempty"`
	Score          float64             `json:"score"`
	SubScores      map[Feature]float64 `json:"subScores,omitempty"`
	AttestationRaw int                 `json:"attestationRaw"` // unnormalized matching cost
	WeightsVersion string              `json:"weightsVersion"`
}

// SlotReport collects everything observed during one slot cycle.
type SlotReport struct {
	ID        string
	Slot      Slot
	StartedAt time.Time
	Duration  time.Duration

	// Results holds exactly one entry per enabled node, in configured order.
	Results   []*FetchResult
	Distances []*DistanceScore
	// DistanceSkipped explains why no distances were computed, empty otherwise.
	DistanceSkipped string
}

func (r *SlotReport) Successes() []*FetchResult {
	res := make([]*FetchResult, 0, len(r.Results))
	for _, fr := range r.Results {
		if fr.OK() {
			res = append(res, fr)
		}
	}
	return res
}

func (r *SlotReport) Result(node string) *FetchResult {
	for _, fr := range r.Results {
		if fr.Node == node {
			return fr
		}
	}
	return nil
}
