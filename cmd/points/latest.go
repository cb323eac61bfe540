package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPoints/internal/config"
	"vaultPoints/internal/storage"
)

func runLatest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLatest(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	day, err := storage.CopyLatest(cfg.DataDir)
	if err != nil {
		return err
	}
	logger.Info("latest updated", zap.Int("day", day), zap.String("data_dir", cfg.DataDir))
	return nil
}
