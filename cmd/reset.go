package cmd

import (
	"blockdreamer/db"
	"blockdreamer/logger"

	"github.com/spf13/cobra"
)

var resetCmd = cobra.Command{
	Use:   "reset",
	Short: "Drop every table in the ClickHouse database",
	Run: func(cmd *cobra.Command, args []string) {
		ch, err := db.NewClickhouse()
		if err != nil {
			logger.GlobalLogger.Error("Failed to connect to ClickHouse", "err", err)
			return
		}
		defer ch.Close()

		// Drop tables
		logger.GlobalLogger.Info("Dropping tables in database...")
		if err := ch.DropTables(); err != nil {
			logger.GlobalLogger.Error("Failed to drop tables", "err", err)
		}
		logger.GlobalLogger.Info("Done.")
	},
}

func init() {
	RootCmd.AddCommand(&resetCmd)
}
