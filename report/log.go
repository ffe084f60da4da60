package report

import (
	"context"
	"log/slog"

	"blockdreamer/logger"
	"blockdreamer/types"
	"blockdreamer/utils"
)

// LogReporter writes one record per node outcome and one per scored pair.
type LogReporter struct {
	Logger *slog.Logger
}

func NewLogReporter() *LogReporter {
	return &LogReporter{Logger: logger.ReportLogger}
}

func (l *LogReporter) Report(_ context.Context, r *types.SlotReport) error {
	for _, fr := range r.Results {
		if !fr.OK() {
			l.Logger.Info("Node outcome", "slot", r.Slot, "node", fr.Node, "label", fr.Label, "status", fr.Status.String(),
				"http_status", fr.HTTPStatus, "latency_ms", fr.Latency.Milliseconds(), "err", fr.Err)
			continue
		}
		b := fr.Block
		graffiti, _ := b.GraffitiString()
		l.Logger.Info("Node outcome", "slot", r.Slot, "node", fr.Node, "label", fr.Label, "status", fr.Status.String(),
			"latency_ms", fr.Latency.Milliseconds(), "version", b.Version, "blinded", b.Blinded,
			"parent_root", b.ParentRoot.Hex(), "graffiti", graffiti, "client_hint", utils.GraffitiClient(graffiti),
			"txs", b.TxCount(), "attestations", len(b.Attestations))
	}

	if r.DistanceSkipped != "" {
		l.Logger.Info("Distances skipped", "slot", r.Slot, "reason", r.DistanceSkipped)
	}
	for _, d := range r.Distances {
		if !d.Comparable {
			l.Logger.Warn("Blocks not comparable", "slot", r.Slot, "node_a", d.NodeA, "node_b", d.NodeB, "reason", d.Reason)
			continue
		}
		attrs := []any{"slot", r.Slot, "node_a", d.NodeA, "node_b", d.NodeB, "score", round(d.Score),
			"attestation_raw", d.AttestationRaw, "weights", d.WeightsVersion}
		for _, f := range types.Features {
			attrs = append(attrs, string(f), round(d.SubScores[f]))
		}
		l.Logger.Info("Block distance", attrs...)
	}
	return nil
}
