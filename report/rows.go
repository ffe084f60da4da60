package report

import (
	"blockdreamer/config"
	"blockdreamer/types"
	"blockdreamer/utils"
)

func round(x float64) float64 {
	return utils.FloatRound(x, config.DISTANCE_SCORE_DIGITS)
}

func SlotReportRow(r *types.SlotReport) *types.SlotReportRow {
	return &types.SlotReportRow{
		ReportId:        r.ID,
		Slot:            uint64(r.Slot),
		Timestamp:       r.StartedAt,
		DurationMs:      uint64(r.Duration.Milliseconds()),
		NodeCount:       uint16(len(r.Results)),
		SuccessCount:    uint16(len(r.Successes())),
		PairCount:       uint16(len(r.Distances)),
		DistanceSkipped: r.DistanceSkipped,
	}
}

func FetchResultRows(r *types.SlotReport) []*types.FetchResultRow {
	rows := make([]*types.FetchResultRow, 0, len(r.Results))
	for _, fr := range r.Results {
		row := &types.FetchResultRow{
			ReportId:     r.ID,
			Slot:         uint64(r.Slot),
			Timestamp:    r.StartedAt,
			Node:         fr.Node,
			Label:        fr.Label,
			Status:       fr.Status.String(),
			HttpStatus:   uint16(fr.HTTPStatus),
			Error:        fr.Err,
			LatencyMs:    uint64(fr.Latency.Milliseconds()),
			GraffitiHint: utils.UNKNOWN_CLIENT,
		}
		if b := fr.Block; fr.OK() {
			row.Version = b.Version
			row.ParentRoot = b.ParentRoot.Hex()
			if g, ok := b.GraffitiString(); ok {
				row.Graffiti = g
				row.GraffitiHint = utils.GraffitiClient(g)
			}
			if fee, ok := b.FeeRecipient(); ok {
				row.FeeRecipient = fee.Hex()
			}
			row.TxCount = uint32(b.TxCount())
			row.AttCount = uint32(len(b.Attestations))
			if b.SyncAggregate != nil {
				row.SyncBits = uint16(b.SyncAggregate.Bits.Count())
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func DistanceRows(r *types.SlotReport) []*types.DistanceRow {
	rows := make([]*types.DistanceRow, 0, len(r.Distances))
	for _, d := range r.Distances {
		sub := d.SubScores
		rows = append(rows, &types.DistanceRow{
			ReportId:       r.ID,
			Slot:           uint64(r.Slot),
			Timestamp:      r.StartedAt,
			NodeA:          d.NodeA,
			NodeB:          d.NodeB,
			Comparable:     d.Comparable,
			Reason:         d.Reason,
			Score:          round(d.Score),
			Graffiti:       round(sub[types.FeatureGraffiti]),
			FeeRecipient:   round(sub[types.FeatureFeeRecipient]),
			ParentRoot:     round(sub[types.FeatureParentRoot]),
			TxOrdering:     round(sub[types.FeatureTxOrdering]),
			TxInclusion:    round(sub[types.FeatureTxInclusion]),
			Attestations:   round(sub[types.FeatureAttestations]),
			SyncAggregate:  round(sub[types.FeatureSyncAggregate]),
			TimestampSkew:  round(sub[types.FeatureTimestamp]),
			AttestationRaw: uint64(d.AttestationRaw),
			WeightsVersion: d.WeightsVersion,
		})
	}
	return rows
}
