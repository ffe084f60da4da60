package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/klauspost/compress/zstd"
	"github.com/prysmaticlabs/go-bitfield"

	"blockdreamer/config"
	"blockdreamer/logger"
	"blockdreamer/types"
	"blockdreamer/utils"
)

func init() {
	logger.InitLogs("report_test")
}

func testResult(node, label string, slot types.Slot, parent string) *types.FetchResult {
	var g [32]byte
	copy(g[:], label+"/v1.0")
	participation := bitfield.NewBitvector512()
	for i := uint64(0); i < 4; i++ {
		participation.SetBitAt(i, true)
	}
	block := &types.BeaconBlock{
		Version:       "deneb",
		Slot:          slot,
		ParentRoot:    common.HexToHash(parent),
		Graffiti:      &g,
		SyncAggregate: &types.SyncAggregate{Bits: participation},
		Execution: &types.ExecutionPayload{
			FeeRecipient: common.HexToAddress("0xaa"),
			Transactions: []hexutil.Bytes{{1}, {2}, {3}},
		},
		Blinded: true,
		Raw:     json.RawMessage(fmt.Sprintf(`{"slot":"%d","body":{"execution_payload_header":{"transactions_root":"0x01"}}}`, slot)),
	}
	return types.NewSuccess(&types.NodeEndpoint{Name: node, Label: label}, slot, block, 15*time.Millisecond)
}

// fullResult is a success carrying the complete execution payload.
func fullResult(node, label string, slot types.Slot, parent string) *types.FetchResult {
	fr := testResult(node, label, slot, parent)
	fr.Block.Blinded = false
	fr.Block.Raw = json.RawMessage(fmt.Sprintf(`{"slot":"%d","body":{"execution_payload":{"transactions":["0x01"]}}}`, slot))
	return fr
}

func testReport(results ...*types.FetchResult) *types.SlotReport {
	return &types.SlotReport{ID: "report-1", Slot: 200, StartedAt: time.Unix(1700000000, 0), Results: results}
}

// newPostServer answers with one attestation reward per posted block, in order.
func newPostServer(t *testing.T, rewards []any, got *atomic.Value) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("invalid POST body: %v", err)
		}
		if got != nil {
			got.Store(body)
		}
		results := make([]map[string]any, 0, len(rewards))
		for _, reward := range rewards {
			results = append(results, map[string]any{"attestation_rewards": map[string]any{"total": reward}})
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestPostReporterExtraData(t *testing.T) {
	var got atomic.Value
	ts := newPostServer(t, []any{100, "250"}, &got)
	dir := t.TempDir()

	p, err := NewPostReporter(&config.PostEndpoint{Name: "gauge", URL: ts.URL, ExtraData: true, CompareRewards: true, ResultsDir: dir})
	if err != nil {
		t.Fatalf("NewPostReporter failed: %v", err)
	}
	failed := types.NewFailure(&types.NodeEndpoint{Name: "c", Label: "prysm"}, 200, types.FetchTimeout, 0, nil, 0)
	r := testReport(testResult("a", "lighthouse", 200, "0x01"), failed, testResult("b", "teku", 200, "0x01"))

	if err := p.Report(context.Background(), r); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	var payload PostPayload
	if err := json.Unmarshal(got.Load().(json.RawMessage), &payload); err != nil {
		t.Fatalf("unexpected payload: %v", err)
	}
	if strings.Join(payload.Names, ",") != "a,b" || strings.Join(payload.Labels, ",") != "lighthouse,teku" || len(payload.Blocks) != 2 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	for _, fr := range []*types.FetchResult{r.Results[0], r.Results[2]} {
		path := filepath.Join(dir, fr.Label, fmt.Sprintf("%s_200.json", fr.Node))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing result file: %v", err)
		}
		if !strings.Contains(string(data), "attestation_rewards") {
			t.Errorf("unexpected result file content: %s", data)
		}
	}
}

func TestPostReporterBareBlocksCompressed(t *testing.T) {
	var got atomic.Value
	ts := newPostServer(t, []any{1}, &got)
	dir := t.TempDir()

	p, err := NewPostReporter(&config.PostEndpoint{Name: "gauge", URL: ts.URL, ResultsDir: dir, Compress: true})
	if err != nil {
		t.Fatalf("NewPostReporter failed: %v", err)
	}
	fr := testResult("a", "", 200, "0x01")
	if err := p.Report(context.Background(), testReport(fr)); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(got.Load().(json.RawMessage), &blocks); err != nil || len(blocks) != 1 {
		t.Fatalf("expected a bare list with one block, got %s (%v)", got.Load(), err)
	}

	path := p.ResultPath(fr, 200)
	if path != filepath.Join(dir, utils.UNKNOWN_CLIENT, "a_200.json.zst") {
		t.Errorf("unexpected result path: %s", path)
	}
	compressed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("missing result file: %v", err)
	}
	dec, _ := zstd.NewReader(nil)
	defer dec.Close()
	data, err := dec.DecodeAll(compressed, nil)
	if err != nil || !strings.Contains(string(data), "attestation_rewards") {
		t.Errorf("unexpected decompressed result: %s (%v)", data, err)
	}
}

func TestPostReporterPostsBlindedBlocksOnly(t *testing.T) {
	var got atomic.Value
	ts := newPostServer(t, []any{5}, &got)

	p, err := NewPostReporter(&config.PostEndpoint{Name: "gauge", URL: ts.URL, ExtraData: true})
	if err != nil {
		t.Fatalf("NewPostReporter failed: %v", err)
	}
	r := testReport(fullResult("a", "lighthouse", 200, "0x01"), testResult("b", "teku", 200, "0x01"))
	if err := p.Report(context.Background(), r); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	var payload PostPayload
	if err := json.Unmarshal(got.Load().(json.RawMessage), &payload); err != nil {
		t.Fatalf("unexpected payload: %v", err)
	}
	if strings.Join(payload.Names, ",") != "b" || len(payload.Blocks) != 1 {
		t.Fatalf("expected only the blinded block of b, got %+v", payload)
	}
	var block struct {
		Body map[string]json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(payload.Blocks[0], &block); err != nil {
		t.Fatalf("invalid posted block: %v", err)
	}
	if _, ok := block.Body["execution_payload_header"]; !ok {
		t.Errorf("posted block has no execution_payload_header: %s", payload.Blocks[0])
	}
	if _, ok := block.Body["execution_payload"]; ok {
		t.Errorf("posted block carries a full payload: %s", payload.Blocks[0])
	}

	// Only full blocks: nothing to post, and require_all counts them as missing
	var calls atomic.Int32
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("[]"))
	}))
	defer counting.Close()
	p, _ = NewPostReporter(&config.PostEndpoint{Name: "gauge", URL: counting.URL})
	if err := p.Report(context.Background(), testReport(fullResult("a", "lighthouse", 200, "0x01"))); err != nil {
		t.Errorf("expected nothing to post, got %v", err)
	}
	p, _ = NewPostReporter(&config.PostEndpoint{Name: "all", URL: counting.URL, RequireAll: true})
	mixed := testReport(fullResult("a", "lighthouse", 200, "0x01"), testResult("b", "teku", 200, "0x01"))
	if err := p.Report(context.Background(), mixed); err == nil || !strings.Contains(err.Error(), utils.NOT_ALL_BLOCKS) {
		t.Errorf("expected require_all error, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no POST requests, got %d", n)
	}
}

func TestPostReporterRequirements(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	failed := types.NewFailure(&types.NodeEndpoint{Name: "c"}, 200, types.FetchNetworkError, 0, errors.New("refused"), 0)
	partial := testReport(testResult("a", "lighthouse", 200, "0x01"), failed)
	p, _ := NewPostReporter(&config.PostEndpoint{Name: "all", URL: ts.URL, RequireAll: true})
	if err := p.Report(context.Background(), partial); err == nil || !strings.Contains(err.Error(), utils.NOT_ALL_BLOCKS) {
		t.Errorf("expected require_all error, got %v", err)
	}

	forked := testReport(testResult("a", "lighthouse", 200, "0x01"), testResult("b", "teku", 200, "0x02"))
	p, _ = NewPostReporter(&config.PostEndpoint{Name: "parent", URL: ts.URL, RequireSameParent: true})
	if err := p.Report(context.Background(), forked); err == nil || !strings.Contains(err.Error(), utils.DIFFERENT_PARENTS) {
		t.Errorf("expected require_same_parent error, got %v", err)
	}

	p, _ = NewPostReporter(&config.PostEndpoint{Name: "empty", URL: ts.URL})
	if err := p.Report(context.Background(), testReport(failed)); err != nil {
		t.Errorf("expected nothing to post, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no POST requests, got %d", n)
	}
}

func TestPostReporterServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad block", http.StatusBadRequest)
	}))
	defer ts.Close()

	p, _ := NewPostReporter(&config.PostEndpoint{Name: "gauge", URL: ts.URL})
	err := p.Report(context.Background(), testReport(testResult("a", "lighthouse", 200, "0x01")))
	var se *utils.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Errorf("expected status error 400, got %v", err)
	}
}

func TestParseReward(t *testing.T) {
	if r, err := parseReward(json.RawMessage(`{"attestation_rewards": {"total": "12"}}`)); err != nil || r != 12 {
		t.Errorf("string total: %d %v", r, err)
	}
	if r, err := parseReward(json.RawMessage(`{"attestation_rewards": {"total": 7}}`)); err != nil || r != 7 {
		t.Errorf("number total: %d %v", r, err)
	}
	for _, bad := range []string{`{}`, `{"attestation_rewards": {"total": -1}}`, `[]`} {
		if _, err := parseReward(json.RawMessage(bad)); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

type blockingReporter struct {
	release chan struct{}
	mu      sync.Mutex
	slots   []types.Slot
}

func (b *blockingReporter) Report(_ context.Context, r *types.SlotReport) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = append(b.slots, r.Slot)
	return nil
}

func TestAsyncDropsWhenFull(t *testing.T) {
	next := &blockingReporter{release: make(chan struct{})}
	a := NewAsync(next, 1)

	// The worker takes the first report and blocks, the second fills the queue
	if err := a.Report(context.Background(), &types.SlotReport{Slot: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for len(a.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := a.Report(context.Background(), &types.SlotReport{Slot: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := a.Report(context.Background(), &types.SlotReport{Slot: 3}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Report blocked on a full queue")
	}

	close(next.release)
	a.Close()
	if len(next.slots) != 2 || next.slots[0] != 1 || next.slots[1] != 2 {
		t.Errorf("expected slots 1 and 2 delivered in order, got %v", next.slots)
	}
	if err := a.Report(context.Background(), &types.SlotReport{Slot: 4}); err == nil {
		t.Error("expected error after Close")
	}
}

type failingReporter struct{ err error }

func (f failingReporter) Report(context.Context, *types.SlotReport) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	errA, errB := errors.New("a down"), errors.New("b down")
	ok := &blockingReporter{release: make(chan struct{})}
	close(ok.release)

	err := Multi{failingReporter{errA}, ok, failingReporter{errB}}.Report(context.Background(), testReport())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both errors, got %v", err)
	}
	if len(ok.slots) != 1 {
		t.Error("a failing sink must not stop the others")
	}
}

func TestRows(t *testing.T) {
	failed := types.NewFailure(&types.NodeEndpoint{Name: "c", Label: "prysm"}, 200, types.FetchProtocolError, 503, errors.New("busy"), 2*time.Second)
	r := testReport(testResult("a", "lighthouse", 200, "0x01"), failed)
	r.Distances = []*types.DistanceScore{{
		NodeA: "a", NodeB: "b", Comparable: true, Score: 1.23456789,
		SubScores:      map[types.Feature]float64{types.FeatureTxOrdering: 1.0 / 3},
		AttestationRaw: 130, WeightsVersion: "v1",
	}}
	r.Duration = 1500 * time.Millisecond

	sr := SlotReportRow(r)
	if sr.NodeCount != 2 || sr.SuccessCount != 1 || sr.PairCount != 1 || sr.DurationMs != 1500 {
		t.Errorf("unexpected slot report row: %+v", sr)
	}

	rows := FetchResultRows(r)
	if len(rows) != 2 {
		t.Fatalf("expected 2 fetch rows, got %d", len(rows))
	}
	if rows[0].GraffitiHint != "lighthouse" || rows[0].TxCount != 3 || rows[0].SyncBits != 4 || rows[0].Status != "success" {
		t.Errorf("unexpected success row: %+v", rows[0])
	}
	if rows[1].Status != "protocol_error" || rows[1].HttpStatus != 503 || rows[1].Error != "busy" || rows[1].LatencyMs != 2000 {
		t.Errorf("unexpected failure row: %+v", rows[1])
	}

	dr := DistanceRows(r)
	if len(dr) != 1 || dr[0].Score != 1.234568 || dr[0].TxOrdering != 0.333333 || dr[0].AttestationRaw != 130 {
		t.Errorf("unexpected distance row: %+v", dr[0])
	}
}
