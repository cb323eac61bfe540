package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPoints/internal/config"
	"vaultPoints/internal/daily"
	"vaultPoints/internal/decode"
	"vaultPoints/internal/events"
	"vaultPoints/internal/integrity"
	"vaultPoints/internal/ledger"
	"vaultPoints/internal/metrics"
	"vaultPoints/internal/model"
	"vaultPoints/internal/points"
	"vaultPoints/internal/replay"
	"vaultPoints/internal/storage"
	"vaultPoints/internal/storage/postgres"
)

// replayRun holds what the states, points and check commands share.
type replayRun struct {
	cfg     config.ReplayConfig
	logger  *zap.Logger
	days    []daily.DayRange
	builder *daily.Builder
	metrics *metrics.Replay
	sink    storage.Sink
	store   *postgres.Store
	closers []func()
}

func (r *replayRun) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// saveProgress records the last completed day of stage in Postgres, if configured.
func (r *replayRun) saveProgress(ctx context.Context, stage string, day int) error {
	if r.store == nil {
		return nil
	}
	return r.store.SaveState(ctx, stage, day)
}

func newReplayRun(ctx context.Context, cmd *cobra.Command, stage string) (*replayRun, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	run := &replayRun{cfg: cfg, logger: logger}
	run.closers = append(run.closers, func() { _ = logger.Sync() })

	if err := run.init(ctx, stage); err != nil {
		run.Close()
		return nil, err
	}
	return run, nil
}

func (r *replayRun) init(ctx context.Context, stage string) error {
	days, err := daily.LoadRanges(r.cfg.BlocksFile)
	if err != nil {
		return err
	}
	r.days = days

	source, err := loadEvents(r.cfg.Events, r.cfg.Token, r.cfg.NFT, r.logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	r.metrics = metrics.NewReplay(registry)
	if r.cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := metrics.Serve(metricsCtx, r.cfg.MetricsAddr, registry, r.logger); err != nil {
				r.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		r.closers = append(r.closers, func() {
			cancel()
			<-done
		})
	}

	sinks := storage.MultiSink{storage.NewFileSink(r.cfg.DataDir)}
	if r.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, r.cfg.PGDSN, r.cfg.PGBatchSize)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if last, ok, err := store.LoadState(ctx, stage); err != nil {
			return err
		} else if ok {
			r.logger.Info("previous run found", zap.String("stage", stage), zap.Int("last_day", last))
		}
		r.store = store
		sinks = append(sinks, store)
	}
	r.sink = sinks

	r.builder = daily.NewBuilder(source, stage, r.logger, r.metrics)

	r.logger.Info(stage+" start",
		zap.Int("days", len(days)),
		zap.Int("events", source.Len()),
		zap.String("data_dir", r.cfg.DataDir),
		zap.Bool("postgres", r.store != nil),
	)
	return nil
}

func loadEvents(paths []string, token, nft string, logger *zap.Logger) (*events.Source, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one events file is required")
	}
	decoder, err := decode.NewTransferDecoder(token, nft)
	if err != nil {
		return nil, err
	}
	source, stats, err := events.Load(paths, decoder, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("events loaded",
		zap.Int("logs", stats.Logs),
		zap.Int("removed", stats.Removed),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
		zap.Int("events", stats.Events),
	)
	return source, nil
}

func loadSnapshot(path string) (*ledger.Snapshot, error) {
	var file model.SnapshotFile
	if err := storage.ReadJSON(path, &file); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return ledger.SnapshotFromFile(file)
}

func runStates(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := newReplayRun(ctx, cmd, "states")
	if err != nil {
		return err
	}
	defer run.Close()

	err = run.builder.Run(ctx, run.days, nil, func(state daily.DailyState) error {
		if err := run.sink.PutDailyState(ctx, state.Record()); err != nil {
			return err
		}
		return run.saveProgress(ctx, "states", state.DayIndex)
	})
	if err != nil {
		return err
	}
	run.logger.Info("states complete", zap.Int("days", len(run.days)))
	return nil
}

func runPoints(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := newReplayRun(ctx, cmd, "points")
	if err != nil {
		return err
	}
	defer run.Close()

	snapshot, err := loadSnapshot(run.cfg.SnapshotFile)
	if err != nil {
		return err
	}
	accruer, err := points.NewAccruer(points.Config{
		RateBase:    run.cfg.RateBase,
		RateNFT:     run.cfg.RateNFT,
		VestingDays: run.cfg.VestingDays,
		Snapshot:    snapshot,
	})
	if err != nil {
		return err
	}

	engine := points.NewEngine(run.builder, accruer, run.logger, run.metrics)
	var total string
	err = engine.Run(ctx, run.days, func(result points.DayResult) error {
		increment, cumulative := result.Records()
		if err := run.sink.PutPoints(ctx, increment, cumulative); err != nil {
			return err
		}
		total = result.Cumulative.Total().String()
		return run.saveProgress(ctx, "points", result.State.DayIndex)
	})
	if err != nil {
		return err
	}
	run.logger.Info("points complete",
		zap.Int("days", len(run.days)),
		zap.String("total", total),
	)
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := newReplayRun(ctx, cmd, "check")
	if err != nil {
		return err
	}
	defer run.Close()

	snapshot, err := loadSnapshot(run.cfg.SnapshotFile)
	if err != nil {
		return err
	}
	if run.cfg.VestingDays < 0 {
		return fmt.Errorf("vesting days must not be negative")
	}

	runner := integrity.NewRunner(run.builder, integrity.NewChecker(snapshot, run.cfg.VestingDays), run.logger, run.metrics)
	report, err := runner.Run(ctx, run.days)
	if err != nil {
		return err
	}

	if err := run.sink.PutIntegrity(ctx, report.Record(time.Now().UTC())); err != nil {
		return err
	}
	if !report.Passed() {
		for _, addr := range report.Addresses() {
			run.logger.Warn("violation",
				zap.String("address", addr),
				zap.Int64("block", report.FirstViolationBlock(addr)),
			)
		}
		return errIntegrityViolated
	}
	return nil
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SnapshotBlock == 0 {
		return fmt.Errorf("snapshot block is required")
	}

	source, err := loadEvents(cfg.Events, cfg.Token, cfg.NFT, logger)
	if err != nil {
		return err
	}

	l := ledger.New()
	if err := replay.ApplyAll(l, source.Events(0, cfg.SnapshotBlock), time.Time{}); err != nil {
		return err
	}
	file := ledger.SnapshotFromLedger(cfg.SnapshotBlock, l).File()
	if err := storage.WriteJSON(cfg.SnapshotFile, file); err != nil {
		return err
	}

	logger.Info("snapshot complete",
		zap.Uint64("block", cfg.SnapshotBlock),
		zap.Int("holders", len(file.Balances)),
		zap.String("total", l.TotalBalance().String()),
		zap.String("out", cfg.SnapshotFile),
	)
	return nil
}
