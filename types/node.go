package types

import "strconv"

// Slot is a beacon chain slot number. It is passed explicitly through every call of a cycle.
type Slot uint64

func (s Slot) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Epoch returns the epoch containing the slot.
func (s Slot) Epoch(slotsPerEpoch uint64) uint64 {
	if slotsPerEpoch == 0 {
		return 0
	}
	return uint64(s) / slotsPerEpoch
}

// NodeEndpoint is a consensus client asked to produce a block every slot, read from config.yaml
type NodeEndpoint struct {
	Name      string `mapstructure:"name" json:"name"`
	Label     string `mapstructure:"label" json:"label"` // client family, e.g. lighthouse, teku
	URL       string `mapstructure:"url" json:"url"`
	AuthToken string `mapstructure:"auth_token" json:"-"` // sent as a bearer token when set

	SkipRandaoVerification bool    `mapstructure:"skip_randao_verification" json:"skipRandaoVerification"`
	V3                     bool    `mapstructure:"v3" json:"v3"`           // use /eth/v3/validator/blocks
	Blinded                bool    `mapstructure:"blinded" json:"blinded"` // use /eth/v1/validator/blinded_blocks, needed by POST endpoints
	Enabled                bool    `mapstructure:"enabled" json:"enabled"`
	BuilderBoostFactor     *uint64 `mapstructure:"builder_boost_factor" json:"builderBoostFactor,omitempty"` // v3 only
	Graffiti               string  `mapstructure:"graffiti" json:"graffiti,omitempty"`                       // requested graffiti, empty means node default
}

type NodeEndpoints []*NodeEndpoint

// Names returns the node names in configured order.
func (ns NodeEndpoints) Names() []string {
	res := make([]string, 0, len(ns))
	for _, n := range ns {
		res = append(res, n.Name)
	}
	return res
}
