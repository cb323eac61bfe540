package daily

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

var (
	// ErrInvalidRanges reports day ranges that are not contiguous or not strictly increasing.
	ErrInvalidRanges = errors.New("invalid day ranges")

	// ErrEventOutOfRange reports an event source returning a block outside the requested day.
	ErrEventOutOfRange = errors.New("event outside day range")
)

// DayRange is one UTC day and its inclusive block range.
type DayRange struct {
	Index      int
	Date       time.Time
	StartBlock uint64
	EndBlock   uint64
}

// Blocks returns the number of blocks in the range.
func (d DayRange) Blocks() uint64 {
	return d.EndBlock - d.StartBlock + 1
}

// RangesFromFile converts a daily blocks file into validated day ranges.
// The day index is the position in the file.
func RangesFromFile(file model.DailyBlocksFile) ([]DayRange, error) {
	days := make([]DayRange, 0, len(file.DailyBlocks))
	for i, entry := range file.DailyBlocks {
		date, err := ledger.ParseDay(entry.Date)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i, err)
		}
		if date.IsZero() {
			return nil, fmt.Errorf("%w: day %d has no date", ErrInvalidRanges, i)
		}
		days = append(days, DayRange{
			Index:      i,
			Date:       date,
			StartBlock: entry.FirstBlock,
			EndBlock:   entry.LastBlock,
		})
	}
	if err := ValidateRanges(days); err != nil {
		return nil, err
	}
	return days, nil
}

// LoadRanges reads a daily blocks JSON file.
func LoadRanges(path string) ([]DayRange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daily blocks: %w", err)
	}
	var file model.DailyBlocksFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode daily blocks: %w", err)
	}
	return RangesFromFile(file)
}

// ValidateRanges checks that ranges are non-empty, contiguous, and strictly
// increasing in both block and date.
func ValidateRanges(days []DayRange) error {
	for i, day := range days {
		if day.EndBlock < day.StartBlock {
			return fmt.Errorf("%w: day %d ends at %d before start %d", ErrInvalidRanges, day.Index, day.EndBlock, day.StartBlock)
		}
		if i == 0 {
			continue
		}
		prev := days[i-1]
		if day.Index != prev.Index+1 {
			return fmt.Errorf("%w: day %d follows day %d", ErrInvalidRanges, day.Index, prev.Index)
		}
		if day.StartBlock != prev.EndBlock+1 {
			return fmt.Errorf("%w: day %d starts at %d, previous ended at %d", ErrInvalidRanges, day.Index, day.StartBlock, prev.EndBlock)
		}
		if !day.Date.After(prev.Date) {
			return fmt.Errorf("%w: day %d date %s not after %s", ErrInvalidRanges, day.Index,
				ledger.FormatDay(day.Date), ledger.FormatDay(prev.Date))
		}
	}
	return nil
}
