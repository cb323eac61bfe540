package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var errIntegrityViolated = errors.New("integrity check failed")

func main() {
	root := &cobra.Command{
		Use:          "points",
		Short:        "Vault points accrual and integrity pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch vault token and NFT Transfer logs",
		RunE:  runFetch,
	}
	fetchCmd.Flags().String("rpc", "", "RPC URL")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().String("token", "", "vault token contract address")
	fetchCmd.Flags().String("nft", "", "NFT contract address")
	fetchCmd.Flags().Uint64("batch-size", 10000, "blocks per batch")
	fetchCmd.Flags().Uint64("min-batch-size", 1000, "smallest batch a failing range is split into")
	fetchCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("timestamp-cache", "", "optional bbolt block timestamp cache path")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(fetchCmd)

	blocksCmd := &cobra.Command{
		Use:   "blocks",
		Short: "Find the first and last block of each UTC day",
		RunE:  runBlocks,
	}
	blocksCmd.Flags().String("rpc", "", "RPC URL")
	blocksCmd.Flags().String("start-date", "", "first day (YYYY-MM-DD, RFC3339 or unix seconds)")
	blocksCmd.Flags().String("end-date", "", "last day, defaults to the latest block's day")
	blocksCmd.Flags().Uint64("blocks-per-day", 7200, "expected blocks per day, used to bound the search")
	blocksCmd.Flags().Bool("include-partial", false, "include the in-progress last day")
	blocksCmd.Flags().String("out", "./data/daily_blocks.json", "output path")
	blocksCmd.Flags().String("timestamp-cache", "", "optional bbolt block timestamp cache path")
	blocksCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(blocksCmd)

	statesCmd := &cobra.Command{
		Use:   "states",
		Short: "Replay events and persist the daily ledgers",
		RunE:  runStates,
	}
	addReplayFlags(statesCmd)
	root.AddCommand(statesCmd)

	pointsCmd := &cobra.Command{
		Use:   "points",
		Short: "Accrue daily and cumulative points",
		RunE:  runPoints,
	}
	addReplayFlags(pointsCmd)
	pointsCmd.Flags().Int64("rate-base", 1500, "per-block points rate without NFT")
	pointsCmd.Flags().Int64("rate-nft", 2130, "per-block points rate with NFT")
	pointsCmd.Flags().Int("vesting-days", 90, "vesting window in days")
	root.AddCommand(pointsCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that locked balances never fall below the snapshot",
		RunE:  runCheck,
	}
	addReplayFlags(checkCmd)
	checkCmd.Flags().Int("vesting-days", 90, "vesting window in days")
	root.AddCommand(checkCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture vault balances at a block",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().StringSlice("events", nil, "raw log JSONL files (comma-separated)")
	snapshotCmd.Flags().String("token", "", "vault token contract address")
	snapshotCmd.Flags().String("nft", "", "NFT contract address")
	snapshotCmd.Flags().Uint64("block", 0, "snapshot block (inclusive)")
	snapshotCmd.Flags().String("snapshot", "./data/snapshot.json", "output path")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(snapshotCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare persisted balances with balanceOf on chain",
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("rpc", "", "RPC URL (archive node for past blocks)")
	verifyCmd.Flags().String("token", "", "vault token contract address")
	verifyCmd.Flags().String("data-dir", "./data", "output directory of the states command")
	verifyCmd.Flags().Int("day", -1, "day index to verify, -1 for the last one")
	verifyCmd.Flags().Int("samples", 20, "addresses to check, 0 for all")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(verifyCmd)

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Copy the last day's points and states to data/latest",
		RunE:  runLatest,
	}
	latestCmd.Flags().String("data-dir", "./data", "output directory")
	latestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(latestCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addReplayFlags(cmd *cobra.Command) {
	cmd.Flags().String("blocks", "./data/daily_blocks.json", "daily blocks file")
	cmd.Flags().StringSlice("events", nil, "raw log JSONL files (comma-separated)")
	cmd.Flags().String("token", "", "vault token contract address")
	cmd.Flags().String("nft", "", "NFT contract address")
	cmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file")
	cmd.Flags().String("data-dir", "./data", "output directory")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	cmd.Flags().Int("pg-batch-size", 1000, "batch size for DB writes")
	cmd.Flags().String("metrics-addr", "", "optional address for the /metrics endpoint")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
