package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultPoints/internal/model"
)

const defaultBatchSize = 1000

const schema = `
CREATE TABLE IF NOT EXISTS points_days (
	day_index   INTEGER PRIMARY KEY,
	date        DATE NOT NULL,
	start_block BIGINT NOT NULL,
	end_block   BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS vault_balances (
	day_index                INTEGER NOT NULL,
	address                  TEXT NOT NULL,
	balance                  NUMERIC(78, 0) NOT NULL,
	last_positive_update_day DATE,
	last_positive_block      BIGINT NOT NULL,
	last_negative_block      BIGINT NOT NULL,
	PRIMARY KEY (day_index, address)
);
CREATE TABLE IF NOT EXISTS nft_holdings (
	day_index INTEGER NOT NULL,
	address   TEXT NOT NULL,
	token_ids NUMERIC(20, 0)[] NOT NULL,
	PRIMARY KEY (day_index, address)
);
CREATE TABLE IF NOT EXISTS daily_points (
	day_index  INTEGER NOT NULL,
	address    TEXT NOT NULL,
	increment  NUMERIC(78, 0) NOT NULL,
	cumulative NUMERIC(78, 0) NOT NULL,
	PRIMARY KEY (day_index, address)
);
CREATE TABLE IF NOT EXISTS integrity_violations (
	address     TEXT PRIMARY KEY,
	first_block BIGINT NOT NULL,
	checked_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_state (
	name           TEXT PRIMARY KEY,
	last_day_index INTEGER NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store mirrors replay outputs into Postgres. Only end-of-day ledgers are stored;
// a day's start ledger is the previous day's end.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewStore(ctx context.Context, dsn string, batchSize int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{pool: pool, batchSize: batchSize}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutDailyState replaces the stored end-of-day ledgers for the record's day.
func (s *Store) PutDailyState(ctx context.Context, state model.StateRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := upsertDay(ctx, tx, state.DayIndex, state.Date, state.StartBlock, state.EndBlock); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM vault_balances WHERE day_index=$1`, state.DayIndex); err != nil {
			return fmt.Errorf("clear balances: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM nft_holdings WHERE day_index=$1`, state.DayIndex); err != nil {
			return fmt.Errorf("clear nft holdings: %w", err)
		}

		balances := sortedKeys(state.PilotVault.EndState)
		err := s.sendChunked(ctx, tx, len(balances), func(batch *pgx.Batch, i int) {
			addr := balances[i]
			rec := state.PilotVault.EndState[addr]
			var day interface{}
			if rec.LastPositiveBalanceUpdateDay != "" {
				day = rec.LastPositiveBalanceUpdateDay
			}
			batch.Queue(`
				INSERT INTO vault_balances (
					day_index, address, balance, last_positive_update_day, last_positive_block, last_negative_block
				) VALUES ($1, $2, $3::text::numeric, $4::text::date, $5, $6)
			`,
				state.DayIndex,
				addr,
				rec.Balance,
				day,
				int64(rec.LastPositiveBalanceUpdateBlock),
				int64(rec.LastNegativeBalanceUpdateBlock),
			)
		})
		if err != nil {
			return fmt.Errorf("insert balances: %w", err)
		}

		holders := sortedKeys(state.NFT.EndState)
		err = s.sendChunked(ctx, tx, len(holders), func(batch *pgx.Batch, i int) {
			addr := holders[i]
			batch.Queue(`INSERT INTO nft_holdings (day_index, address, token_ids) VALUES ($1, $2, $3::text[]::numeric[])`,
				state.DayIndex, addr, tokenIDStrings(state.NFT.EndState[addr]))
		})
		if err != nil {
			return fmt.Errorf("insert nft holdings: %w", err)
		}
		return nil
	})
}

// PutPoints upserts a day's increments and running totals.
func (s *Store) PutPoints(ctx context.Context, increment, cumulative model.PointsRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := upsertDay(ctx, tx, cumulative.DayIndex, cumulative.Date, cumulative.StartBlock, cumulative.EndBlock); err != nil {
			return err
		}
		addrs := sortedKeys(cumulative.Points)
		return s.sendChunked(ctx, tx, len(addrs), func(batch *pgx.Batch, i int) {
			addr := addrs[i]
			inc, ok := increment.Points[addr]
			if !ok {
				inc = "0"
			}
			batch.Queue(`
				INSERT INTO daily_points (day_index, address, increment, cumulative)
				VALUES ($1, $2, $3::text::numeric, $4::text::numeric)
				ON CONFLICT (day_index, address)
				DO UPDATE SET
					increment = EXCLUDED.increment,
					cumulative = EXCLUDED.cumulative
			`, cumulative.DayIndex, addr, inc, cumulative.Points[addr])
		})
	})
}

// PutIntegrity replaces the stored violations with the report's.
func (s *Store) PutIntegrity(ctx context.Context, report model.IntegrityReport) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM integrity_violations`); err != nil {
			return fmt.Errorf("clear violations: %w", err)
		}
		addrs := make([]string, 0, len(report.Violations))
		for addr := range report.Violations {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)
		return s.sendChunked(ctx, tx, len(addrs), func(batch *pgx.Batch, i int) {
			addr := addrs[i]
			batch.Queue(`
				INSERT INTO integrity_violations (address, first_block, checked_at)
				VALUES ($1, $2, $3::text::timestamptz)
			`, addr, int64(report.Violations[addr]), report.CheckedAt)
		})
	})
}

// LoadState returns the last completed day index for a stage.
func (s *Store) LoadState(ctx context.Context, name string) (int, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var day int
	row := s.pool.QueryRow(ctx, `SELECT last_day_index FROM run_state WHERE name=$1`, name)
	if err := row.Scan(&day); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return day, true, nil
}

// SaveState upserts the last completed day index for a stage.
func (s *Store) SaveState(ctx context.Context, name string, day int) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (name, last_day_index, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_day_index = EXCLUDED.last_day_index, updated_at = now()
	`, name, day)
	return err
}

func upsertDay(ctx context.Context, tx pgx.Tx, day int, date string, start, end uint64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO points_days (day_index, date, start_block, end_block, updated_at)
		VALUES ($1, $2::text::date, $3, $4, now())
		ON CONFLICT (day_index) DO UPDATE
		SET date = EXCLUDED.date,
			start_block = EXCLUDED.start_block,
			end_block = EXCLUDED.end_block,
			updated_at = now()
	`, day, date, int64(start), int64(end))
	if err != nil {
		return fmt.Errorf("upsert day %d: %w", day, err)
	}
	return nil
}

// sendChunked queues n statements in batches of batchSize and executes them.
func (s *Store) sendChunked(ctx context.Context, tx pgx.Tx, n int, queue func(*pgx.Batch, int)) error {
	for start := 0; start < n; start += s.batchSize {
		end := start + s.batchSize
		if end > n {
			end = n
		}
		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			queue(batch, i)
		}
		br := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}

// tokenIDStrings renders ids as decimal text so values above MaxInt64 survive.
func tokenIDStrings(ids []uint64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(id, 10))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
