package distance

import (
	"fmt"
	"sort"
	"strings"

	"blockdreamer/types"
)

// WeightsVersion identifies the feature set and default weights. Bump it whenever either changes
// so that stored scores stay comparable.
const WeightsVersion = "v1"

// Weights is the multiplier of each feature's sub-score in the combined distance.
type Weights map[types.Feature]float64

func DefaultWeights() Weights {
	return Weights{
		types.FeatureGraffiti:      1.0,
		types.FeatureFeeRecipient:  1.0,
		types.FeatureParentRoot:    1.0,
		types.FeatureTxOrdering:    2.0,
		types.FeatureTxInclusion:   2.0,
		types.FeatureAttestations:  3.0,
		types.FeatureSyncAggregate: 1.0,
		types.FeatureTimestamp:     0.5,
	}
}

// WeightsFromMap overrides the defaults with the configured weights. Unknown feature names and
// negative weights are rejected.
func WeightsFromMap(m map[string]float64) (Weights, error) {
	w := DefaultWeights()
	known := make(map[types.Feature]bool, len(types.Features))
	for _, f := range types.Features {
		known[f] = true
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f := types.Feature(strings.ToLower(k))
		if !known[f] {
			return nil, fmt.Errorf("unknown distance feature %q", k)
		}
		if m[k] < 0 {
			return nil, fmt.Errorf("negative weight %v for feature %q", m[k], k)
		}
		w[f] = m[k]
	}
	return w, nil
}

// Max is the largest possible combined distance.
func (w Weights) Max() float64 {
	total := 0.0
	for _, f := range types.Features {
		total += w[f]
	}
	return total
}
