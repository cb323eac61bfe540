package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPoints/internal/cache"
	"vaultPoints/internal/chain"
	"vaultPoints/internal/config"
	"vaultPoints/internal/decode"
	"vaultPoints/internal/indexer"
	"vaultPoints/internal/storage"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
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

	addresses, err := indexer.ParseAddresses([]string{cfg.Token, cfg.NFT})
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("token or nft address is required")
	}

	transferTopic, err := decode.TransferTopic()
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0([]string{transferTopic})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, closeChain, err := dialChain(ctx, cfg.RPCURL, cfg.TimestampCache, logger)
	if err != nil {
		return err
	}
	defer closeChain()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		MinBatchSize:      cfg.MinBatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("fetch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.String("token", cfg.Token),
		zap.String("nft", cfg.NFT),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Uint64("min_batch_size", cfg.MinBatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

// dialChain connects to rpcURL and attaches the bbolt timestamp cache when a
// path is configured.
func dialChain(ctx context.Context, rpcURL, cachePath string, logger *zap.Logger) (*chain.Client, func(), error) {
	chainClient, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainClient.SetLogger(logger)
	if cachePath == "" {
		return chainClient, chainClient.Close, nil
	}

	store, err := cache.OpenTimestampStore(cachePath)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}
	if n, err := store.Len(); err == nil {
		logger.Info("timestamp cache opened", zap.String("path", cachePath), zap.Int("entries", n))
	}
	chainClient.SetTimestampStore(store)

	return chainClient, func() {
		chainClient.Close()
		if err := store.Close(); err != nil {
			logger.Warn("close timestamp cache", zap.Error(err))
		}
	}, nil
}
