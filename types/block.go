package types

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prysmaticlabs/go-bitfield"
)

// BeaconBlock is the decoded block a node produced for a slot. Optional sections are nil when the
// node did not return them (pre-Altair, blinded payloads, unknown forks).
type BeaconBlock struct {
	Version       string // fork name reported by the node, e.g. deneb
	Blinded       bool
	Slot          Slot
	ProposerIndex uint64
	ParentRoot    common.Hash
	StateRoot     common.Hash

	Graffiti      *[32]byte
	Attestations  []*Attestation
	SyncAggregate *SyncAggregate
	Execution     *ExecutionPayload

	// Raw is the block object exactly as returned by the node. Blinded blocks are forwarded to
	// POST endpoints as is.
	Raw json.RawMessage
}

type Checkpoint struct {
	Epoch uint64
	Root  common.Hash
}

type AttestationData struct {
	Slot            uint64
	Index           uint64
	BeaconBlockRoot common.Hash
	Source          Checkpoint
	Target          Checkpoint
}

type Attestation struct {
	AggregationBits bitfield.Bitlist
	CommitteeBits   bitfield.Bitvector64 // electra and later, nil before
	Data            AttestationData
}

// AttestationKey identifies attestations that can be compared against each other.
type AttestationKey struct {
	Data          AttestationData
	CommitteeBits string
}

func (a *Attestation) Key() AttestationKey {
	return AttestationKey{Data: a.Data, CommitteeBits: string(a.CommitteeBits)}
}

type SyncAggregate struct {
	Bits bitfield.Bitvector512
}

type ExecutionPayload struct {
	FeeRecipient common.Address
	BlockHash    common.Hash
	BlockNumber  uint64
	Timestamp    uint64
	GasUsed      uint64
	GasLimit     uint64
	// Transactions is nil for blinded payloads where only the header is known.
	Transactions    []hexutil.Bytes
	WithdrawalCount int
}

// GraffitiString decodes graffiti as text, trimming trailing NULs. Non UTF-8 graffiti is
// returned hex-encoded. ok is false when the block carried no graffiti.
func (b *BeaconBlock) GraffitiString() (string, bool) {
	if b == nil || b.Graffiti == nil {
		return "", false
	}
	g := bytes.TrimRight(b.Graffiti[:], "\x00")
	if !utf8.Valid(g) {
		return hexutil.Encode(b.Graffiti[:]), true
	}
	return string(g), true
}

// FeeRecipient returns the execution fee recipient, ok is false without an execution payload.
func (b *BeaconBlock) FeeRecipient() (common.Address, bool) {
	if b == nil || b.Execution == nil {
		return common.Address{}, false
	}
	return b.Execution.FeeRecipient, true
}

func (b *BeaconBlock) TxCount() int {
	if b == nil || b.Execution == nil {
		return 0
	}
	return len(b.Execution.Transactions)
}
