package indexer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultPoints/internal/storage"
)

// Checkpoint tracks the last fetched block for a set of contracts.
type Checkpoint struct {
	LastProcessedBlock uint64   `json:"last_processed_block"`
	Contracts          []string `json:"contracts,omitempty"`
	UpdatedAt          string   `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	var cp Checkpoint
	if err := storage.ReadJSON(c.path, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint: %w", err)
	}
	return cp, true, nil
}

func (c *CheckpointStore) Save(lastProcessed uint64, contracts []common.Address) error {
	if !c.enabled {
		return nil
	}
	cp := Checkpoint{
		LastProcessedBlock: lastProcessed,
		Contracts:          contractKeys(contracts),
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := storage.WriteJSON(c.path, cp); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Matches reports whether cp was written for contracts. Checkpoints without a
// contract list match anything.
func (cp Checkpoint) Matches(contracts []common.Address) bool {
	if len(cp.Contracts) == 0 {
		return true
	}
	return strings.Join(cp.Contracts, ",") == strings.Join(contractKeys(contracts), ",")
}

func contractKeys(contracts []common.Address) []string {
	out := make([]string, 0, len(contracts))
	for _, addr := range contracts {
		out = append(out, strings.ToLower(addr.Hex()))
	}
	sort.Strings(out)
	return out
}
