package events

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"vaultPoints/internal/daily"
	"vaultPoints/internal/decode"
	"vaultPoints/internal/model"
	"vaultPoints/internal/storage"
)

// Source holds every tracked event in canonical order and serves them per day.
type Source struct {
	events []model.Event
}

// LoadStats summarizes how raw logs were turned into events.
type LoadStats struct {
	Logs       int
	Removed    int
	Duplicates int
	Skipped    int
	Events     int
}

// Load reads raw JSONL log files, decodes tracked Transfer logs, drops removed
// and duplicate logs, and sorts the result.
func Load(paths []string, decoder *decode.TransferDecoder, logger *zap.Logger) (*Source, LoadStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var records []model.LogRecord
	for _, path := range paths {
		batch, err := storage.ReadLogRecords(path)
		if err != nil {
			return nil, LoadStats{}, err
		}
		logger.Debug("logs loaded", zap.String("path", path), zap.Int("records", len(batch)))
		records = append(records, batch...)
	}
	return FromRecords(records, decoder)
}

// FromRecords decodes records into a Source.
func FromRecords(records []model.LogRecord, decoder *decode.TransferDecoder) (*Source, LoadStats, error) {
	stats := LoadStats{Logs: len(records)}
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Event, 0, len(records))

	for _, record := range records {
		if record.Removed {
			stats.Removed++
			continue
		}
		if !decoder.CanDecode(record) {
			stats.Skipped++
			continue
		}
		key := positionKey(record)
		if _, ok := seen[key]; ok {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		ev, err := decoder.Decode(record)
		if err != nil {
			return nil, stats, fmt.Errorf("decode log %s: %w", key, err)
		}
		out = append(out, ev)
	}

	src := NewSource(out)
	stats.Events = len(src.events)
	return src, stats, nil
}

// positionKey identifies a log by its place in the chain. Copies of one log
// from different files may differ in hash casing but never in position.
func positionKey(record model.LogRecord) string {
	return fmt.Sprintf("%d:%d:%d", record.BlockNumber, record.TxIndex, record.LogIndex)
}

// NewSource sorts events by (block, tx index, log index).
func NewSource(evts []model.Event) *Source {
	sorted := make([]model.Event, len(evts))
	copy(sorted, evts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.Compare(sorted[i], sorted[j]) < 0
	})
	return &Source{events: sorted}
}

// Len returns the number of events.
func (s *Source) Len() int {
	return len(s.events)
}

// Events returns the events with block numbers in [from, to], in order.
func (s *Source) Events(from, to uint64) []model.Event {
	lo := sort.Search(len(s.events), func(i int) bool { return s.events[i].BlockNumber >= from })
	hi := sort.Search(len(s.events), func(i int) bool { return s.events[i].BlockNumber > to })
	if lo >= hi {
		return nil
	}
	return s.events[lo:hi]
}

// EventsForDay groups the day's events per block.
func (s *Source) EventsForDay(_ context.Context, day daily.DayRange) (map[uint64][]model.Event, error) {
	out := make(map[uint64][]model.Event)
	for _, ev := range s.Events(day.StartBlock, day.EndBlock) {
		out[ev.BlockNumber] = append(out[ev.BlockNumber], ev)
	}
	return out, nil
}
