package blocks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

// DefaultBlocksPerDay assumes 12 second blocks.
const DefaultBlocksPerDay = 7200

// HeaderSource exposes the chain data needed to place day boundaries.
type HeaderSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

type Config struct {
	BlocksPerDay uint64
	// IncludePartial keeps the in-progress last day, ending at the latest block.
	IncludePartial bool
}

// Finder locates the first and last block of each UTC day by binary search over block timestamps.
type Finder struct {
	src    HeaderSource
	cfg    Config
	logger *zap.Logger
}

func NewFinder(src HeaderSource, cfg Config, logger *zap.Logger) *Finder {
	if cfg.BlocksPerDay == 0 {
		cfg.BlocksPerDay = DefaultBlocksPerDay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{src: src, cfg: cfg, logger: logger}
}

// FindDailyBlocks returns contiguous day ranges for [startDate, endDate]. Each day
// ends one block before the next day's first block. endDate is clamped to the
// latest block's day.
func (f *Finder) FindDailyBlocks(ctx context.Context, startDate, endDate time.Time) (model.DailyBlocksFile, error) {
	startDate = ledger.TruncateDay(startDate)
	endDate = ledger.TruncateDay(endDate)

	latest, err := f.src.LatestBlockNumber(ctx)
	if err != nil {
		return model.DailyBlocksFile{}, fmt.Errorf("get latest block: %w", err)
	}
	latestTs, err := f.src.BlockTimestamp(ctx, latest)
	if err != nil {
		return model.DailyBlocksFile{}, fmt.Errorf("latest block timestamp: %w", err)
	}

	latestDay := ledger.TruncateDay(time.Unix(int64(latestTs), 0))
	if endDate.IsZero() || endDate.After(latestDay) {
		endDate = latestDay
	}
	if startDate.After(endDate) {
		return model.DailyBlocksFile{}, fmt.Errorf("start date %s is after end date %s",
			ledger.FormatDay(startDate), ledger.FormatDay(endDate))
	}

	lo, err := f.searchFloor(ctx, startDate, latest)
	if err != nil {
		return model.DailyBlocksFile{}, err
	}

	first, found, err := f.firstAtOrAfter(ctx, dayStart(startDate), lo, latest)
	if err != nil {
		return model.DailyBlocksFile{}, err
	}
	if !found {
		return model.DailyBlocksFile{}, fmt.Errorf("no block on or after %s", ledger.FormatDay(startDate))
	}

	var days []model.DayBlocks
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return model.DailyBlocksFile{}, err
		}

		next, found, err := f.firstAtOrAfter(ctx, dayStart(day.AddDate(0, 0, 1)), first, latest)
		if err != nil {
			return model.DailyBlocksFile{}, err
		}

		if !found {
			if !f.cfg.IncludePartial {
				f.logger.Info("skipping incomplete day", zap.String("date", ledger.FormatDay(day)), zap.Uint64("latest_block", latest))
				break
			}
			entry, err := f.dayEntry(ctx, day, first, latest)
			if err != nil {
				return model.DailyBlocksFile{}, err
			}
			days = append(days, entry)
			break
		}
		if next == first {
			f.logger.Warn("day without blocks", zap.String("date", ledger.FormatDay(day)))
			continue
		}

		entry, err := f.dayEntry(ctx, day, first, next-1)
		if err != nil {
			return model.DailyBlocksFile{}, err
		}
		days = append(days, entry)
		f.logger.Debug("day blocks",
			zap.String("date", entry.Date),
			zap.Uint64("first_block", entry.FirstBlock),
			zap.Uint64("last_block", entry.LastBlock),
		)
		first = next
	}

	return model.DailyBlocksFile{
		Metadata: model.DailyBlocksMeta{
			StartDate:            ledger.FormatDay(startDate),
			EndDate:              ledger.FormatDay(endDate),
			LatestBlock:          latest,
			LatestBlockTimestamp: latestTs,
			TotalDays:            len(days),
			GeneratedAt:          time.Now().UTC().Format(time.RFC3339),
		},
		DailyBlocks: days,
	}, nil
}

func (f *Finder) dayEntry(ctx context.Context, day time.Time, first, last uint64) (model.DayBlocks, error) {
	firstTs, err := f.src.BlockTimestamp(ctx, first)
	if err != nil {
		return model.DayBlocks{}, fmt.Errorf("block %d timestamp: %w", first, err)
	}
	lastTs, err := f.src.BlockTimestamp(ctx, last)
	if err != nil {
		return model.DayBlocks{}, fmt.Errorf("block %d timestamp: %w", last, err)
	}
	return model.DayBlocks{
		Date:                ledger.FormatDay(day),
		FirstBlock:          first,
		LastBlock:           last,
		FirstBlockTimestamp: firstTs,
		LastBlockTimestamp:  lastTs,
	}, nil
}

// searchFloor estimates a block before startDate from the blocks-per-day
// heuristic, falling back to genesis when the estimate overshoots.
func (f *Finder) searchFloor(ctx context.Context, startDate time.Time, latest uint64) (uint64, error) {
	latestTs, err := f.src.BlockTimestamp(ctx, latest)
	if err != nil {
		return 0, err
	}
	span := ledger.TruncateDay(time.Unix(int64(latestTs), 0)).Sub(startDate)
	daysBack := uint64(span/(24*time.Hour)) + 1
	margin := daysBack * f.cfg.BlocksPerDay * 2
	if margin >= latest {
		return 0, nil
	}
	lo := latest - margin
	ts, err := f.src.BlockTimestamp(ctx, lo)
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", lo, err)
	}
	if ts >= dayStart(startDate) {
		f.logger.Debug("heuristic floor overshoots, searching from genesis", zap.Uint64("estimate", lo))
		return 0, nil
	}
	return lo, nil
}

// firstAtOrAfter returns the first block in [lo, hi] whose timestamp is >= target.
func (f *Finder) firstAtOrAfter(ctx context.Context, target, lo, hi uint64) (uint64, bool, error) {
	left, right := lo, hi+1
	for left < right {
		mid := left + (right-left)/2
		ts, err := f.src.BlockTimestamp(ctx, mid)
		if err != nil {
			return 0, false, fmt.Errorf("block %d timestamp: %w", mid, err)
		}
		if ts >= target {
			right = mid
		} else {
			left = mid + 1
		}
	}
	if left > hi {
		return 0, false, nil
	}
	return left, true, nil
}

func dayStart(day time.Time) uint64 {
	return uint64(day.Unix())
}
