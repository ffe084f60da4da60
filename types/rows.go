package types

import "time"

// SlotReportRow is one row of blockdreamer.slot_reports
type SlotReportRow struct {
	ReportId        string    `ch:"reportId"`
	Slot            uint64    `ch:"slot"`
	Timestamp       time.Time `ch:"timestamp"`
	DurationMs      uint64    `ch:"durationMs"`
	NodeCount       uint16    `ch:"nodeCount"`
	SuccessCount    uint16    `ch:"successCount"`
	PairCount       uint16    `ch:"pairCount"`
	DistanceSkipped string    `ch:"distanceSkipped"`
}

// FetchResultRow is one row of blockdreamer.fetch_results, one per (slot, node)
type FetchResultRow struct {
	ReportId     string    `ch:"reportId"`
	Slot         uint64    `ch:"slot"`
	Timestamp    time.Time `ch:"timestamp"`
	Node         string    `ch:"node"`
	Label        string    `ch:"label"`
	Status       string    `ch:"status"`
	HttpStatus   uint16    `ch:"httpStatus"`
	Error        string    `ch:"error"`
	LatencyMs    uint64    `ch:"latencyMs"`
	Version      string    `ch:"version"`
	ParentRoot   string    `ch:"parentRoot"`
	Graffiti     string    `ch:"graffiti"`
	GraffitiHint string    `ch:"graffitiHint"` // client guessed from graffiti
	FeeRecipient string    `ch:"feeRecipient"`
	TxCount      uint32    `ch:"txCount"`
	AttCount     uint32    `ch:"attCount"`
	SyncBits     uint16    `ch:"syncBits"` // set sync committee bits
}

// DistanceRow is one row of blockdreamer.block_distances, one per node pair
type DistanceRow struct {
	ReportId       string    `ch:"reportId"`
	Slot           uint64    `ch:"slot"`
	Timestamp      time.Time `ch:"timestamp"`
	NodeA          string    `ch:"nodeA"`
	NodeB          string    `ch:"nodeB"`
	Comparable     bool      `ch:"comparable"`
	Reason         string    `ch:"reason"`
	Score          float64   `ch:"score"`
	Graffiti       float64   `ch:"graffiti"`
	FeeRecipient   float64   `ch:"feeRecipient"`
	ParentRoot     float64   `ch:"parentRoot"`
	TxOrdering     float64   `ch:"txOrdering"`
	TxInclusion    float64   `ch:"txInclusion"`
	Attestations   float64   `ch:"attestations"`
	SyncAggregate  float64   `ch:"syncAggregate"`
	TimestampSkew  float64   `ch:"timestampSkew"`
	AttestationRaw uint64    `ch:"attestationRaw"`
	WeightsVersion string    `ch:"weightsVersion"`
}
