package daily

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/metrics"
	"vaultPoints/internal/model"
	"vaultPoints/internal/replay"
)

// EventSource serves the ordered events of one day, grouped by block.
type EventSource interface {
	EventsForDay(ctx context.Context, day DayRange) (map[uint64][]model.Event, error)
}

// SpanHook observes the ledger over the inclusive block span [from, to], during
// which it does not change. Hooks must not mutate l.
type SpanHook func(day DayRange, from, to uint64, l *ledger.Ledger) error

// DailyState is the ledger at both ends of one day.
type DailyState struct {
	DayIndex   int
	Date       time.Time
	StartBlock uint64
	EndBlock   uint64
	Start      *ledger.Ledger
	End        *ledger.Ledger
}

// Record renders the persisted form, keeping positive balances and non-empty NFT sets only.
func (s DailyState) Record() model.StateRecord {
	startBalances, startNFTs := s.Start.Records()
	endBalances, endNFTs := s.End.Records()
	return model.StateRecord{
		StartBlock: s.StartBlock,
		EndBlock:   s.EndBlock,
		Date:       ledger.FormatDay(s.Date),
		DayIndex:   s.DayIndex,
		NFT: model.NFTStates{
			StartState: startNFTs,
			EndState:   endNFTs,
		},
		PilotVault: model.VaultStates{
			StartState: startBalances,
			EndState:   endBalances,
		},
	}
}

// Builder rolls a ledger across days by replaying each day's events.
type Builder struct {
	source  EventSource
	stage   string
	logger  *zap.Logger
	metrics *metrics.Replay
}

// NewBuilder creates a Builder. stage labels logs and metrics.
func NewBuilder(source EventSource, stage string, logger *zap.Logger, m *metrics.Replay) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{source: source, stage: stage, logger: logger, metrics: m}
}

// BuildDay replays day on a copy of start. When hook is set it is called for
// consecutive spans covering every block of the day, each span observing the
// ledger after all events of its first block.
func (b *Builder) BuildDay(ctx context.Context, day DayRange, start *ledger.Ledger, hook SpanHook) (DailyState, error) {
	began := time.Now()

	byBlock, err := b.source.EventsForDay(ctx, day)
	if err != nil {
		return DailyState{}, fmt.Errorf("events for day %d: %w", day.Index, err)
	}

	blocks := make([]uint64, 0, len(byBlock))
	for block, events := range byBlock {
		if block < day.StartBlock || block > day.EndBlock {
			return DailyState{}, fmt.Errorf("%w: block %d not in day %d [%d, %d]",
				ErrEventOutOfRange, block, day.Index, day.StartBlock, day.EndBlock)
		}
		for _, ev := range events {
			if ev.BlockNumber != block {
				return DailyState{}, fmt.Errorf("%w: event %s filed under block %d", ErrEventOutOfRange, ev.Position(), block)
			}
		}
		if len(events) > 0 {
			blocks = append(blocks, block)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	current := start.Clone()
	cursor := day.StartBlock
	var transfers, nftTransfers int

	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return DailyState{}, err
		}
		if hook != nil && block > cursor {
			if err := hook(day, cursor, block-1, current); err != nil {
				return DailyState{}, err
			}
		}

		events := byBlock[block]
		if err := replay.ApplyAll(current, events, day.Date); err != nil {
			return DailyState{}, fmt.Errorf("day %d block %d: %w", day.Index, block, err)
		}
		for _, ev := range events {
			if ev.Kind == model.EventNFTTransfer {
				nftTransfers++
			} else {
				transfers++
			}
		}

		to := day.EndBlock
		if i+1 < len(blocks) {
			to = blocks[i+1] - 1
		}
		if hook != nil {
			if err := hook(day, block, to, current); err != nil {
				return DailyState{}, err
			}
		}
		cursor = to + 1
	}

	if hook != nil && len(blocks) == 0 {
		if err := hook(day, day.StartBlock, day.EndBlock, current); err != nil {
			return DailyState{}, err
		}
	}

	b.metrics.ObserveEvents(b.stage, model.EventTransfer.String(), transfers)
	b.metrics.ObserveEvents(b.stage, model.EventNFTTransfer.String(), nftTransfers)
	b.metrics.ObserveDay(b.stage, day.EndBlock, current.Len(), time.Since(began))

	b.logger.Debug("day replayed",
		zap.String("stage", b.stage),
		zap.Int("day", day.Index),
		zap.String("date", ledger.FormatDay(day.Date)),
		zap.Uint64("start_block", day.StartBlock),
		zap.Uint64("end_block", day.EndBlock),
		zap.Int("transfers", transfers),
		zap.Int("nft_transfers", nftTransfers),
		zap.Int("addresses", current.Len()),
	)

	return DailyState{
		DayIndex:   day.Index,
		Date:       day.Date,
		StartBlock: day.StartBlock,
		EndBlock:   day.EndBlock,
		Start:      start.Clone(),
		End:        current,
	}, nil
}

// Run replays days in order from an empty ledger, handing each day to emit.
// The next day starts from a copy of the emitted end ledger.
func (b *Builder) Run(ctx context.Context, days []DayRange, hook SpanHook, emit func(DailyState) error) error {
	return b.RunFrom(ctx, days, ledger.New(), hook, emit)
}

// RunFrom is Run with an explicit starting ledger for the first day.
func (b *Builder) RunFrom(ctx context.Context, days []DayRange, start *ledger.Ledger, hook SpanHook, emit func(DailyState) error) error {
	if err := ValidateRanges(days); err != nil {
		return err
	}

	current := start
	for _, day := range days {
		state, err := b.BuildDay(ctx, day, current, hook)
		if err != nil {
			return err
		}
		current = state.End.Clone()
		if emit != nil {
			if err := emit(state); err != nil {
				return fmt.Errorf("emit day %d: %w", day.Index, err)
			}
		}
	}
	return nil
}
