package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blockdreamer/config"
	"blockdreamer/dreamer"
	"blockdreamer/logger"

	"github.com/spf13/cobra"
)

var genesisTimeout time.Duration

var runCmd = cobra.Command{
	Use:   "run",
	Short: "Request a block from every configured node at each slot and compare them",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("run")
		logger.DreamLogger.Info("Running cmd run, starting block dreamer...")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := dreamer.RunDreamCmd(ctx, genesisTimeout); err != nil {
			logger.DreamLogger.Error("Error running block dreamer", "err", err)
		}
	},
}

func init() {
	runCmd.Flags().DurationVar(
		&genesisTimeout,
		"genesis-timeout",
		config.DEFAULT_GENESIS_TIMEOUT,
		"(Optional) how long to wait for the canonical beacon node to report genesis",
	)
	RootCmd.AddCommand(&runCmd)
}
