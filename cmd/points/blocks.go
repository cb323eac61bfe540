package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPoints/internal/blocks"
	"vaultPoints/internal/config"
	"vaultPoints/internal/ledger"
	"vaultPoints/internal/storage"
)

func runBlocks(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBlocks(cfgFile, cmd.Flags())
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
	if cfg.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, closeChain, err := dialChain(ctx, cfg.RPCURL, cfg.TimestampCache, logger)
	if err != nil {
		return err
	}
	defer closeChain()

	finder := blocks.NewFinder(chainClient, blocks.Config{
		BlocksPerDay:   cfg.BlocksPerDay,
		IncludePartial: cfg.IncludePartial,
	}, logger)

	logger.Info("blocks start",
		zap.String("start_date", ledger.FormatDay(cfg.StartDate)),
		zap.String("end_date", ledger.FormatDay(cfg.EndDate)),
		zap.Uint64("blocks_per_day", cfg.BlocksPerDay),
		zap.Bool("include_partial", cfg.IncludePartial),
	)

	file, err := finder.FindDailyBlocks(ctx, cfg.StartDate, cfg.EndDate)
	if err != nil {
		return err
	}
	if err := storage.WriteJSON(cfg.Out, file); err != nil {
		return err
	}

	logger.Info("blocks complete",
		zap.Int("days", file.Metadata.TotalDays),
		zap.Uint64("latest_block", file.Metadata.LatestBlock),
		zap.String("out", cfg.Out),
	)
	return nil
}
