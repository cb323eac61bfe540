package points

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"vaultPoints/internal/daily"
	"vaultPoints/internal/ledger"
	"vaultPoints/internal/metrics"
	"vaultPoints/internal/model"
)

// DayResult is the points outcome of one replayed day.
type DayResult struct {
	State      daily.DailyState
	Increment  Table
	Cumulative Table
}

// Records returns the persisted increment and cumulative points of the day.
func (r DayResult) Records() (model.PointsRecord, model.PointsRecord) {
	meta := func(t Table) model.PointsRecord {
		return model.PointsRecord{
			StartBlock: r.State.StartBlock,
			EndBlock:   r.State.EndBlock,
			Date:       ledger.FormatDay(r.State.Date),
			DayIndex:   r.State.DayIndex,
			Points:     t.Strings(),
		}
	}
	return meta(r.Increment), meta(r.Cumulative)
}

// Engine drives the daily builder and accrues points for every block.
type Engine struct {
	builder *daily.Builder
	accruer *Accruer
	logger  *zap.Logger
	metrics *metrics.Replay
}

func NewEngine(builder *daily.Builder, accruer *Accruer, logger *zap.Logger, m *metrics.Replay) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{builder: builder, accruer: accruer, logger: logger, metrics: m}
}

// Run replays days and hands each day's increment and running total to emit.
// Nothing is emitted for a day that fails to replay.
func (e *Engine) Run(ctx context.Context, days []daily.DayRange, emit func(DayResult) error) error {
	cumulative := make(Table)
	increment := make(Table)

	hook := func(day daily.DayRange, from, to uint64, l *ledger.Ledger) error {
		return e.accruer.AccrueSpan(l, day.Date, increment, to-from+1)
	}

	return e.builder.Run(ctx, days, hook, func(state daily.DailyState) error {
		cumulative.Merge(increment)
		result := DayResult{
			State:      state,
			Increment:  increment,
			Cumulative: cumulative.Clone(),
		}
		increment = make(Table)

		total := result.Cumulative.Total()
		e.metrics.SetPointsTotal(bigToFloat(total))
		e.logger.Info("points accrued",
			zap.Int("day", state.DayIndex),
			zap.String("date", ledger.FormatDay(state.Date)),
			zap.Int("addresses", len(result.Cumulative)),
			zap.String("day_total", result.Increment.Total().String()),
			zap.String("cumulative_total", total.String()),
		)

		if emit == nil {
			return nil
		}
		return emit(result)
	})
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
