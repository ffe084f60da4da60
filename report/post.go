package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"blockdreamer/config"
	"blockdreamer/logger"
	"blockdreamer/types"
	"blockdreamer/utils"
)

// PostPayload is the blockgauge request body when extra data is enabled.
type PostPayload struct {
	Names  []string          `json:"names"`
	Labels []string          `json:"labels"`
	Blocks []json.RawMessage `json:"blocks"`
}

type rewardResult struct {
	AttestationRewards struct {
		Total json.Number `json:"total"`
	} `json:"attestation_rewards"`
}

// PostReporter posts every slot's blocks to an HTTP endpoint, and stores the per-block
// responses it gets back.
type PostReporter struct {
	endpoint *config.PostEndpoint
	encoder  *zstd.Encoder
	Logger   *slog.Logger
}

func NewPostReporter(endpoint *config.PostEndpoint) (*PostReporter, error) {
	p := &PostReporter{endpoint: endpoint, Logger: logger.ReportLogger}
	if endpoint.Compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		p.encoder = enc
	}
	return p, nil
}

// Report posts the blinded blocks of the slot. Full blocks are left out: the endpoint evaluates
// blinded blocks only, so nodes feeding a POST endpoint should be configured with `blinded`.
func (p *PostReporter) Report(ctx context.Context, r *types.SlotReport) error {
	successes := blindedSuccesses(r)
	if skipped := len(r.Successes()) - len(successes); skipped > 0 {
		p.Logger.Warn("Not posting full blocks", "endpoint", p.endpoint.Name, "slot", r.Slot, "skipped", skipped)
	}
	if len(successes) == 0 {
		return nil
	}
	if p.endpoint.RequireAll && len(successes) != len(r.Results) {
		return fmt.Errorf("%s: %s, only got %d/%d blocks", p.endpoint.Name, utils.NOT_ALL_BLOCKS, len(successes), len(r.Results))
	}
	if p.endpoint.RequireSameParent {
		parent := successes[0].Block.ParentRoot
		for _, fr := range successes[1:] {
			if fr.Block.ParentRoot != parent {
				return fmt.Errorf("%s: %s", p.endpoint.Name, utils.DIFFERENT_PARENTS)
			}
		}
	}

	payload := PostPayload{
		Names:  make([]string, 0, len(successes)),
		Labels: make([]string, 0, len(successes)),
		Blocks: make([]json.RawMessage, 0, len(successes)),
	}
	for _, fr := range successes {
		payload.Names = append(payload.Names, fr.Node)
		payload.Labels = append(payload.Labels, fr.Label)
		payload.Blocks = append(payload.Blocks, fr.Block.Raw)
	}

	var body any = payload.Blocks
	if p.endpoint.ExtraData {
		body = payload
	}

	ctx, cancel := context.WithTimeout(ctx, config.POST_TIMEOUT)
	defer cancel()

	var results []json.RawMessage
	if err := utils.PostUrlResponseWithRetry(ctx, p.endpoint.URL, body, &results, config.POST_RETRY_TIMES, p.Logger); err != nil {
		return fmt.Errorf("%s: %w", p.endpoint.Name, err)
	}
	if len(results) != len(successes) {
		p.Logger.Warn("POST endpoint returned unexpected number of results", "endpoint", p.endpoint.Name,
			"slot", r.Slot, "blocks", len(successes), "results", len(results))
	}

	var (
		errs       []error
		maxReward  uint64
		bestBlocks []string
	)
	for i, result := range results {
		if i >= len(successes) {
			break
		}
		fr := successes[i]

		if p.endpoint.CompareRewards {
			reward, err := parseReward(result)
			if err != nil {
				errs = append(errs, fmt.Errorf("reward from %s: %w", fr.Node, err))
			} else {
				p.Logger.Info("Block reward", "endpoint", p.endpoint.Name, "slot", r.Slot, "node", fr.Node, "reward_gwei", reward)
				switch {
				case reward > maxReward || bestBlocks == nil:
					maxReward = reward
					bestBlocks = []string{fr.Node}
				case reward == maxReward:
					bestBlocks = append(bestBlocks, fr.Node)
				}
			}
		}

		if p.endpoint.ResultsDir != "" {
			if err := p.saveResult(fr, r.Slot, result); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if p.endpoint.CompareRewards && bestBlocks != nil {
		p.Logger.Info("Most profitable block", "endpoint", p.endpoint.Name, "slot", r.Slot, "nodes", bestBlocks, "reward_gwei", maxReward)
	}
	return errors.Join(errs...)
}

func blindedSuccesses(r *types.SlotReport) []*types.FetchResult {
	var res []*types.FetchResult
	for _, fr := range r.Successes() {
		if fr.Block.Blinded && len(fr.Block.Raw) > 0 {
			res = append(res, fr)
		}
	}
	return res
}

func parseReward(result json.RawMessage) (uint64, error) {
	var rr rewardResult
	if err := json.Unmarshal(result, &rr); err != nil {
		return 0, err
	}
	if rr.AttestationRewards.Total == "" {
		return 0, errors.New("missing attestation_rewards.total")
	}
	total, err := rr.AttestationRewards.Total.Int64()
	if err != nil || total < 0 {
		return 0, fmt.Errorf("invalid attestation_rewards.total %q", rr.AttestationRewards.Total)
	}
	return uint64(total), nil
}

// ResultPath is <results_dir>/<label>/<node>_<slot>.json, with a .zst suffix when compressed.
func (p *PostReporter) ResultPath(fr *types.FetchResult, slot types.Slot) string {
	label := fr.Label
	if label == "" {
		label = utils.UNKNOWN_CLIENT
	}
	name := fmt.Sprintf("%s_%d.json", fr.Node, uint64(slot))
	if p.encoder != nil {
		name += ".zst"
	}
	return filepath.Join(p.endpoint.ResultsDir, label, name)
}

func (p *PostReporter) saveResult(fr *types.FetchResult, slot types.Slot, result json.RawMessage) error {
	path := p.ResultPath(fr, slot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create %s: %w", filepath.Dir(path), err)
	}

	data := []byte(result)
	if p.encoder != nil {
		data = p.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}
