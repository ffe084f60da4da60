package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"blockdreamer/utils"
)

// ChainInfo is what the slot clock needs to know about the network.
type ChainInfo struct {
	GenesisTime    time.Time
	SecondsPerSlot uint64
	SlotsPerEpoch  uint64
}

type genesisResponse struct {
	Data struct {
		GenesisTime string `json:"genesis_time"`
	} `json:"data"`
}

type specResponse struct {
	Data map[string]any `json:"data"`
}

// GetChainInfo reads genesis and slot timing from the canonical beacon node, retrying until ctx
// expires since the node may still be starting up.
func GetChainInfo(ctx context.Context, baseUrl string, logger *slog.Logger) (*ChainInfo, error) {
	base := strings.TrimRight(baseUrl, "/")

	var lastErr error
	for attempt := 1; ; attempt++ {
		info, err := getChainInfo(ctx, base)
		if err == nil {
			return info, nil
		}
		lastErr = err
		logger.Warn("Failed to read chain info, retrying...", "url", base, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain info from %s: %w", base, errors.Join(ctx.Err(), lastErr))
		case <-time.After(utils.DefaultRetryInterval * time.Duration(min(attempt, 20))):
		}
	}
}

func getChainInfo(ctx context.Context, base string) (*ChainInfo, error) {
	var genesis genesisResponse
	if err := utils.GetUrlResponse(ctx, base+"/eth/v1/beacon/genesis", nil, &genesis); err != nil {
		return nil, fmt.Errorf("get genesis: %w", err)
	}
	genesisTime, err := strconv.ParseInt(genesis.Data.GenesisTime, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis_time %q: %w", genesis.Data.GenesisTime, err)
	}

	var spec specResponse
	if err := utils.GetUrlResponse(ctx, base+"/eth/v1/config/spec", nil, &spec); err != nil {
		return nil, fmt.Errorf("get spec: %w", err)
	}
	secondsPerSlot, err := specUint(spec.Data, "SECONDS_PER_SLOT")
	if err != nil {
		return nil, err
	}
	slotsPerEpoch, err := specUint(spec.Data, "SLOTS_PER_EPOCH")
	if err != nil {
		return nil, err
	}

	return &ChainInfo{
		GenesisTime:    time.Unix(genesisTime, 0),
		SecondsPerSlot: secondsPerSlot,
		SlotsPerEpoch:  slotsPerEpoch,
	}, nil
}

// Spec values are strings on conforming nodes, some return plain numbers
func specUint(data map[string]any, key string) (uint64, error) {
	v, ok := data[key]
	if !ok {
		return 0, fmt.Errorf("spec is missing %s", key)
	}
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, x, err)
		}
		return n, nil
	case float64:
		if x < 0 {
			return 0, fmt.Errorf("invalid %s %v", key, x)
		}
		return uint64(x), nil
	default:
		return 0, fmt.Errorf("unexpected type for %s: %T", key, v)
	}
}
