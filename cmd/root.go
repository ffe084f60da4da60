package cmd

import (
	"blockdreamer/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	quiet      bool
)

var RootCmd = &cobra.Command{
	Use:   "blockdreamer",
	Short: "A tool for requesting blocks from every consensus client each slot and comparing them",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "(Optional) config file, merged over ./config.yaml")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "(Optional) log to files only, not to stdout")
	cobra.OnInitialize(func() {
		if quiet {
			logger.SetConsoleEnabled(false)
		}
		if configFile == "" {
			return
		}
		viper.SetConfigFile(configFile)
		if err := viper.MergeInConfig(); err != nil {
			logger.GlobalLogger.Error("Error reading config file", "file", configFile, "err", err)
		}
	})
}
