package cmd

import (
	"fmt"
	"os"
	"strings"

	"blockdreamer/beacon"
	"blockdreamer/config"
	"blockdreamer/distance"
	"blockdreamer/logger"
	"blockdreamer/types"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	secondsPerSlot uint64
	showDeltas     bool
)

var distanceCmd = cobra.Command{
	Use:   "distance <a.json> <b.json>",
	Short: "Compute the distance between two saved block responses",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := readBlock(args[0])
		if err != nil {
			logger.GlobalLogger.Error("Failed to read block", "file", args[0], "err", err)
			return
		}
		b, err := readBlock(args[1])
		if err != nil {
			logger.GlobalLogger.Error("Failed to read block", "file", args[1], "err", err)
			return
		}

		var configured map[string]float64
		if err := viper.UnmarshalKey("distance.weights", &configured); err != nil {
			logger.GlobalLogger.Error("Failed to parse distance weights", "err", err)
			return
		}
		weights, err := distance.WeightsFromMap(configured)
		if err != nil {
			logger.GlobalLogger.Error("Invalid distance weights", "err", err)
			return
		}
		engine := distance.NewEngine(weights, secondsPerSlot)
		score := engine.Compare(args[0], a, args[1], b)

		out := cmd.OutOrStdout()
		if !score.Comparable {
			fmt.Fprintf(out, "not comparable: %s\n", score.Reason)
			return
		}
		fmt.Fprintf(out, "slot %d, weights %s\n", score.Slot, score.WeightsVersion)
		for _, f := range types.Features {
			fmt.Fprintf(out, "  %-15s %.6f (weight %.2f)\n", f, score.SubScores[f], weights[f])
		}
		fmt.Fprintf(out, "  %-15s %d\n", "attestation raw", score.AttestationRaw)
		fmt.Fprintf(out, "score %.6f / %.2f\n", score.Score, weights.Max())

		if showDeltas {
			for _, d := range distance.AttestationDeltas(a.Attestations, b.Attestations) {
				switch d.Kind {
				case distance.Modify:
					if d.Cost() > 0 {
						fmt.Fprintf(out, "  modify %d -> %d: position %d, bits %d\n", d.Left, d.Right, d.PosDistance, d.BitDistance)
					}
				case distance.InsertLeft:
					fmt.Fprintf(out, "  only in a: %d (%d bits)\n", d.Left, d.SetBits)
				case distance.InsertRight:
					fmt.Fprintf(out, "  only in b: %d (%d bits)\n", d.Right, d.SetBits)
				}
			}
		}
	},
}

// readBlock decodes a saved block response, zstd compressed when the name ends in .zst
func readBlock(path string) (*types.BeaconBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
	}
	return beacon.DecodeBlockResponse(data)
}

func init() {
	distanceCmd.Flags().Uint64Var(&secondsPerSlot, "seconds-per-slot", config.DEFAULT_SECONDS_PER_SLOT, "slot duration used to scale timestamp differences")
	distanceCmd.Flags().BoolVar(&showDeltas, "deltas", false, "print the attestation edits between both blocks")
	RootCmd.AddCommand(&distanceCmd)
}
