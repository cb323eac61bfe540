package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPoints/internal/chain"
	"vaultPoints/internal/config"
	"vaultPoints/internal/storage"
	"vaultPoints/internal/verify"
)

func runVerify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadVerify(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	day := cfg.Day
	if day < 0 {
		days, err := storage.DayFiles(cfg.DataDir, storage.StatesDir)
		if err != nil {
			return err
		}
		if len(days) == 0 {
			return fmt.Errorf("no daily states under %s", cfg.DataDir)
		}
		day = days[len(days)-1]
	}
	state, err := storage.LoadStateRecord(cfg.DataDir, day)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	result, err := verify.Balances(ctx, chainClient, cfg.Token, state, cfg.Samples, logger)
	if err != nil {
		return err
	}

	logger.Info("verify complete",
		zap.Int("day", result.DayIndex),
		zap.Uint64("block", result.Block),
		zap.Int("checked", result.Checked),
		zap.Int("mismatches", len(result.Mismatches)),
	)
	if !result.OK() {
		return fmt.Errorf("%d balance mismatches on day %d", len(result.Mismatches), result.DayIndex)
	}
	return nil
}
