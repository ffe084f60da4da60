package types

import "time"

// FetchStatus is the terminal state of one block request.
type FetchStatus uint8

const (
	FetchSuccess FetchStatus = iota
	FetchTimeout
	FetchNetworkError
	FetchProtocolError // non 2xx status code
	FetchDecodeError
)

func (s FetchStatus) String() string {
	switch s {
	case FetchSuccess:
		return "success"
	case FetchTimeout:
		return "timeout"
	case FetchNetworkError:
		return "network_error"
	case FetchProtocolError:
		return "protocol_error"
	case FetchDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of asking one node for a block at one slot.
// Block is set iff Status is FetchSuccess, HTTPStatus only for FetchProtocolError.
type FetchResult struct {
	Node       string
	Label      string
	Slot       Slot
	Status     FetchStatus
	HTTPStatus int
	Err        string
	Latency    time.Duration
	Block      *BeaconBlock
}

func (r *FetchResult) OK() bool {
	return r != nil && r.Status == FetchSuccess && r.Block != nil
}

func NewSuccess(node *NodeEndpoint, slot Slot, block *BeaconBlock, latency time.Duration) *FetchResult {
	return &FetchResult{Node: node.Name, Label: node.Label, Slot: slot, Status: FetchSuccess, Block: block, Latency: latency}
}

func NewTimeout(node *NodeEndpoint, slot Slot, latency time.Duration) *FetchResult {
	return &FetchResult{Node: node.Name, Label: node.Label, Slot: slot, Status: FetchTimeout, Err: "deadline exceeded", Latency: latency}
}

func NewFailure(node *NodeEndpoint, slot Slot, status FetchStatus, httpStatus int, err error, latency time.Duration) *FetchResult {
	r := &FetchResult{Node: node.Name, Label: node.Label, Slot: slot, Status: status, HTTPStatus: httpStatus, Latency: latency}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}
