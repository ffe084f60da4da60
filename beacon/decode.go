package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apiv1capella "github.com/attestantio/go-eth2-client/api/v1/capella"
	apiv1deneb "github.com/attestantio/go-eth2-client/api/v1/deneb"
	apiv1electra "github.com/attestantio/go-eth2-client/api/v1/electra"
	"github.com/attestantio/go-eth2-client/spec/altair"
	"github.com/attestantio/go-eth2-client/spec/bellatrix"
	"github.com/attestantio/go-eth2-client/spec/capella"
	"github.com/attestantio/go-eth2-client/spec/deneb"
	"github.com/attestantio/go-eth2-client/spec/electra"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"blockdreamer/types"
)

// BlockResponse is the envelope of the /eth/v2, /eth/v3 and blinded validator block endpoints.
type BlockResponse struct {
	Version                 string          `json:"version"`
	ExecutionPayloadBlinded *bool           `json:"execution_payload_blinded,omitempty"` // v3 only
	ExecutionPayloadValue   string          `json:"execution_payload_value,omitempty"`   // v3 only
	ConsensusBlockValue     string          `json:"consensus_block_value,omitempty"`     // v3 only
	Data                    json.RawMessage `json:"data"`
}

// shape tells apart block contents (deneb and later full blocks) and blinded bodies.
type shape struct {
	Slot  json.RawMessage `json:"slot"`
	Block json.RawMessage `json:"block"`
	Body  *struct {
		ExecutionPayloadHeader json.RawMessage `json:"execution_payload_header"`
	} `json:"body"`
}

// DecodeBlockResponse decodes a full validator block response body.
func DecodeBlockResponse(body []byte) (*types.BeaconBlock, error) {
	var resp BlockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid block response: %w", err)
	}
	return DecodeBlock(&resp)
}

// DecodeBlock converts the data of a block response into a BeaconBlock. Deneb and later full
// blocks come wrapped together with blobs as data.block.
func DecodeBlock(resp *BlockResponse) (*types.BeaconBlock, error) {
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, errors.New("response has no data")
	}

	data := resp.Data
	var outer shape
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, fmt.Errorf("data is not an object: %w", err)
	}
	inner, raw := outer, data
	contents := len(outer.Block) > 0 && len(outer.Slot) == 0
	if contents {
		raw = outer.Block
		inner = shape{}
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("block is not an object: %w", err)
		}
	}
	blinded := inner.Body != nil && len(inner.Body.ExecutionPayloadHeader) > 0
	if resp.ExecutionPayloadBlinded != nil && *resp.ExecutionPayloadBlinded != blinded {
		return nil, fmt.Errorf("execution_payload_blinded is %t but the block is not", *resp.ExecutionPayloadBlinded)
	}

	version := strings.ToLower(resp.Version)
	var (
		block *types.BeaconBlock
		err   error
	)
	switch {
	case version == "capella" && blinded:
		block, err = decodeInto(data, fromCapellaBlinded)
	case version == "capella":
		block, err = decodeInto(data, fromCapella)
	case version == "deneb" && blinded:
		block, err = decodeInto(data, fromDenebBlinded)
	case version == "deneb" && contents:
		block, err = decodeInto(data, func(c *apiv1deneb.BlockContents) (*types.BeaconBlock, error) {
			return fromDeneb(c.Block)
		})
	case version == "deneb":
		block, err = decodeInto(data, fromDeneb)
	// fulu blocks share the electra schema
	case (version == "electra" || version == "fulu") && blinded:
		block, err = decodeInto(data, fromElectraBlinded)
	case version == "electra" || version == "fulu":
		if contents {
			block, err = decodeInto(data, func(c *apiv1electra.BlockContents) (*types.BeaconBlock, error) {
				return fromElectra(c.Block)
			})
		} else {
			block, err = decodeInto(data, fromElectra)
		}
	default:
		return nil, fmt.Errorf("unsupported fork %q", resp.Version)
	}
	if err != nil {
		return nil, err
	}

	block.Version = version
	block.Blinded = blinded
	block.Raw = append(json.RawMessage(nil), raw...)
	return block, nil
}

// decodeInto unmarshals data as T, which validates every field of the fork schema, then converts it.
func decodeInto[T any](data []byte, convert func(*T) (*types.BeaconBlock, error)) (*types.BeaconBlock, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("invalid block: %w", err)
	}
	return convert(v)
}

func newBlock(slot phase0.Slot, proposer phase0.ValidatorIndex, parent, state phase0.Root, graffiti [32]byte, sync *altair.SyncAggregate) *types.BeaconBlock {
	b := &types.BeaconBlock{
		Slot:          types.Slot(slot),
		ProposerIndex: uint64(proposer),
		ParentRoot:    common.Hash(parent),
		StateRoot:     common.Hash(state),
		Graffiti:      &graffiti,
	}
	if sync != nil {
		b.SyncAggregate = &types.SyncAggregate{Bits: sync.SyncCommitteeBits}
	}
	return b
}

func fromCapella(b *capella.BeaconBlock) (*types.BeaconBlock, error) {
	if b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = phase0Attestations(b.Body.Attestations)
	if p := b.Body.ExecutionPayload; p != nil {
		block.Execution = payload(p.FeeRecipient, p.BlockHash, p.BlockNumber, p.Timestamp, p.GasUsed, p.GasLimit, p.Transactions, len(p.Withdrawals))
	}
	return block, nil
}

func fromCapellaBlinded(b *apiv1capella.BlindedBeaconBlock) (*types.BeaconBlock, error) {
	if b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = phase0Attestations(b.Body.Attestations)
	if h := b.Body.ExecutionPayloadHeader; h != nil {
		block.Execution = header(h.FeeRecipient, h.BlockHash, h.BlockNumber, h.Timestamp, h.GasUsed, h.GasLimit)
	}
	return block, nil
}

func fromDeneb(b *deneb.BeaconBlock) (*types.BeaconBlock, error) {
	if b == nil || b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = phase0Attestations(b.Body.Attestations)
	if p := b.Body.ExecutionPayload; p != nil {
		block.Execution = payload(p.FeeRecipient, p.BlockHash, p.BlockNumber, p.Timestamp, p.GasUsed, p.GasLimit, p.Transactions, len(p.Withdrawals))
	}
	return block, nil
}

func fromDenebBlinded(b *apiv1deneb.BlindedBeaconBlock) (*types.BeaconBlock, error) {
	if b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = phase0Attestations(b.Body.Attestations)
	if h := b.Body.ExecutionPayloadHeader; h != nil {
		block.Execution = header(h.FeeRecipient, h.BlockHash, h.BlockNumber, h.Timestamp, h.GasUsed, h.GasLimit)
	}
	return block, nil
}

func fromElectra(b *electra.BeaconBlock) (*types.BeaconBlock, error) {
	if b == nil || b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = electraAttestations(b.Body.Attestations)
	if p := b.Body.ExecutionPayload; p != nil {
		block.Execution = payload(p.FeeRecipient, p.BlockHash, p.BlockNumber, p.Timestamp, p.GasUsed, p.GasLimit, p.Transactions, len(p.Withdrawals))
	}
	return block, nil
}

func fromElectraBlinded(b *apiv1electra.BlindedBeaconBlock) (*types.BeaconBlock, error) {
	if b.Body == nil {
		return nil, errors.New("block has no body")
	}
	block := newBlock(b.Slot, b.ProposerIndex, b.ParentRoot, b.StateRoot, b.Body.Graffiti, b.Body.SyncAggregate)
	block.Attestations = electraAttestations(b.Body.Attestations)
	if h := b.Body.ExecutionPayloadHeader; h != nil {
		block.Execution = header(h.FeeRecipient, h.BlockHash, h.BlockNumber, h.Timestamp, h.GasUsed, h.GasLimit)
	}
	return block, nil
}

func attestationData(d *phase0.AttestationData) types.AttestationData {
	if d == nil {
		return types.AttestationData{}
	}
	res := types.AttestationData{
		Slot:            uint64(d.Slot),
		Index:           uint64(d.Index),
		BeaconBlockRoot: common.Hash(d.BeaconBlockRoot),
	}
	if d.Source != nil {
		res.Source = types.Checkpoint{Epoch: uint64(d.Source.Epoch), Root: common.Hash(d.Source.Root)}
	}
	if d.Target != nil {
		res.Target = types.Checkpoint{Epoch: uint64(d.Target.Epoch), Root: common.Hash(d.Target.Root)}
	}
	return res
}

func phase0Attestations(atts []*phase0.Attestation) []*types.Attestation {
	res := make([]*types.Attestation, 0, len(atts))
	for _, a := range atts {
		res = append(res, &types.Attestation{AggregationBits: a.AggregationBits, Data: attestationData(a.Data)})
	}
	return res
}

func electraAttestations(atts []*electra.Attestation) []*types.Attestation {
	res := make([]*types.Attestation, 0, len(atts))
	for _, a := range atts {
		res = append(res, &types.Attestation{
			AggregationBits: a.AggregationBits,
			CommitteeBits:   a.CommitteeBits,
			Data:            attestationData(a.Data),
		})
	}
	return res
}

func payload(recipient bellatrix.ExecutionAddress, hash phase0.Hash32, number, timestamp, gasUsed, gasLimit uint64,
	txs []bellatrix.Transaction, withdrawals int) *types.ExecutionPayload {
	ep := header(recipient, hash, number, timestamp, gasUsed, gasLimit)
	ep.WithdrawalCount = withdrawals
	ep.Transactions = make([]hexutil.Bytes, 0, len(txs))
	for _, tx := range txs {
		ep.Transactions = append(ep.Transactions, hexutil.Bytes(tx))
	}
	return ep
}

// header leaves Transactions nil: a blinded payload only commits to them.
func header(recipient bellatrix.ExecutionAddress, hash phase0.Hash32, number, timestamp, gasUsed, gasLimit uint64) *types.ExecutionPayload {
	return &types.ExecutionPayload{
		FeeRecipient: common.Address(recipient),
		BlockHash:    common.Hash(hash),
		BlockNumber:  number,
		Timestamp:    timestamp,
		GasUsed:      gasUsed,
		GasLimit:     gasLimit,
	}
}
