package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Size returns the number of blocks in the range.
func (r BlockRange) Size() uint64 {
	return r.To - r.From + 1
}

// Halves splits the range in two, the first half taking the extra block.
func (r BlockRange) Halves() []BlockRange {
	if r.From == r.To {
		return []BlockRange{r}
	}
	mid := r.From + (r.Size()+1)/2 - 1
	return []BlockRange{{From: r.From, To: mid}, {From: mid + 1, To: r.To}}
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
