package model

import (
	"fmt"

	"github.com/holiman/uint256"
)

// EventKind identifies the ledger an event affects.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventTransfer
	EventNFTTransfer
)

func (k EventKind) String() string {
	switch k {
	case EventTransfer:
		return "transfer"
	case EventNFTTransfer:
		return "nft_transfer"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is a decoded balance-affecting log.
// Value is set for transfers only, TokenID for NFT transfers only.
type Event struct {
	Kind        EventKind
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
	TxHash      string
	From        string
	To          string
	Value       *uint256.Int
	TokenID     uint64
}

// Compare orders events by block number, transaction index, then log index.
func Compare(a, b Event) int {
	switch {
	case a.BlockNumber != b.BlockNumber:
		return cmpUint64(a.BlockNumber, b.BlockNumber)
	case a.TxIndex != b.TxIndex:
		return cmpUint64(a.TxIndex, b.TxIndex)
	default:
		return cmpUint64(a.LogIndex, b.LogIndex)
	}
}

// Position returns a printable block:tx:log locator.
func (e Event) Position() string {
	return fmt.Sprintf("%d:%d:%d", e.BlockNumber, e.TxIndex, e.LogIndex)
}

func cmpUint64(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
