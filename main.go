package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"blockdreamer/cmd"
	"blockdreamer/config"
	"blockdreamer/logger"
)

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.ConfigPath)

	if err := viper.MergeInConfig(); err != nil {
		logger.GlobalLogger.Error("Error reading config.yaml file, if you don't have config.yaml file, please create one from config-example.yaml", "err", err)
	}

	if err := godotenv.Load(config.ConfigPath + ".env"); err != nil {
		logger.GlobalLogger.Warn("No .env file loaded, ClickHouse credentials are read from the environment", "err", err)
	}

	viper.AutomaticEnv()
}

func main() {
	initConfig()
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.GlobalLogger.Error("Error executing command", "err", err)
	}

	logger.CloseAll()
}
