package beacon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"blockdreamer/types"
	"blockdreamer/utils"
)

// InfinityRandaoReveal is the point-at-infinity BLS signature, accepted as randao reveal when the
// node skips randao verification.
const InfinityRandaoReveal = "0xc00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// Fetcher asks one node to produce a block for one slot. Implementations never retry and
// always return a non-nil result, failures included.
type Fetcher interface {
	FetchBlock(ctx context.Context, node *types.NodeEndpoint, slot types.Slot) *types.FetchResult
}

// HTTPFetcher requests blocks through the beacon node validator API.
type HTTPFetcher struct{}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{}
}

func (f *HTTPFetcher) FetchBlock(ctx context.Context, node *types.NodeEndpoint, slot types.Slot) *types.FetchResult {
	start := time.Now()

	var resp BlockResponse
	err := utils.GetUrlResponse(ctx, BlockRequestUrl(node, slot), authHeaders(node), &resp)
	if err == nil {
		var block *types.BeaconBlock
		block, err = DecodeBlock(&resp)
		if err != nil {
			err = &utils.DecodeError{Err: err}
		} else if block.Slot != slot {
			err = &utils.DecodeError{Err: fmt.Errorf("node returned block for slot %d", block.Slot)}
		} else {
			return types.NewSuccess(node, slot, block, time.Since(start))
		}
	}

	latency := time.Since(start)
	status, httpStatus := Classify(ctx, err)
	if status == types.FetchTimeout {
		return types.NewTimeout(node, slot, latency)
	}
	return types.NewFailure(node, slot, status, httpStatus, err, latency)
}

// BlockRequestUrl builds the block production url for node at slot.
func BlockRequestUrl(node *types.NodeEndpoint, slot types.Slot) string {
	root := strings.TrimRight(node.URL, "/")
	var base string
	switch {
	case node.Blinded:
		base = fmt.Sprintf("%s/eth/v1/validator/blinded_blocks/%d", root, uint64(slot))
	case node.V3:
		base = fmt.Sprintf("%s/eth/v3/validator/blocks/%d", root, uint64(slot))
	default:
		base = fmt.Sprintf("%s/eth/v2/validator/blocks/%d", root, uint64(slot))
	}

	params := url.Values{}
	params.Set("randao_reveal", InfinityRandaoReveal)
	if node.Graffiti != "" {
		var g [32]byte
		copy(g[:], node.Graffiti)
		params.Set("graffiti", hexutil.Encode(g[:]))
	}
	if node.SkipRandaoVerification {
		params.Set("skip_randao_verification", "")
	}
	if node.V3 && node.BuilderBoostFactor != nil {
		params.Set("builder_boost_factor", strconv.FormatUint(*node.BuilderBoostFactor, 10))
	}
	return utils.BuildUrl(base, params)
}

func authHeaders(node *types.NodeEndpoint) map[string]string {
	if node.AuthToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + node.AuthToken}
}

// Classify maps a fetch error onto the FetchResult variants.
func Classify(ctx context.Context, err error) (types.FetchStatus, int) {
	if err == nil {
		return types.FetchSuccess, 0
	}

	var se *utils.StatusError
	if errors.As(err, &se) {
		return types.FetchProtocolError, se.Code
	}
	var de *utils.DecodeError
	if errors.As(err, &de) {
		return types.FetchDecodeError, 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.FetchTimeout, 0
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.FetchTimeout, 0
	}
	return types.FetchNetworkError, 0
}
