package replay

import (
	"errors"
	"fmt"
	"time"

	"vaultPoints/internal/ledger"
	"vaultPoints/internal/model"
)

var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrUnordered        = errors.New("events out of order")
)

// Apply mutates the states addressed by ev. date is the calendar day of the
// event's block and becomes the receiver's last positive balance update day.
func Apply(l *ledger.Ledger, ev model.Event, date time.Time) error {
	switch ev.Kind {
	case model.EventTransfer:
		return applyTransfer(l, ev, date)
	case model.EventNFTTransfer:
		applyNFTTransfer(l, ev)
		return nil
	default:
		return fmt.Errorf("%w: %s at %s", ErrUnknownEventKind, ev.Kind, ev.Position())
	}
}

// ApplyAll applies events in order. An empty sequence leaves l unchanged.
// Sequences that are not ascending in (block, tx, log) are rejected before any mutation.
func ApplyAll(l *ledger.Ledger, events []model.Event, date time.Time) error {
	for i := 1; i < len(events); i++ {
		if model.Compare(events[i-1], events[i]) >= 0 {
			return fmt.Errorf("%w: %s then %s", ErrUnordered, events[i-1].Position(), events[i].Position())
		}
	}
	for _, ev := range events {
		if err := Apply(l, ev, date); err != nil {
			return err
		}
	}
	return nil
}

func applyTransfer(l *ledger.Ledger, ev model.Event, date time.Time) error {
	if ev.Value == nil {
		return fmt.Errorf("transfer without value at %s", ev.Position())
	}
	value := ev.Value.ToBig()

	if !ledger.IsZeroAddress(ev.From) {
		from := l.GetOrCreate(ev.From)
		from.Balance.Sub(from.Balance, value)
		from.LastNegativeBlock = ev.BlockNumber
		if from.Balance.Sign() < 0 {
			return fmt.Errorf("%w: %s has %s after %s", ledger.ErrNegativeBalance,
				ledger.NormalizeAddress(ev.From), from.Balance, ev.Position())
		}
	}
	if !ledger.IsZeroAddress(ev.To) {
		to := l.GetOrCreate(ev.To)
		to.Balance.Add(to.Balance, value)
		to.LastPositiveBlock = ev.BlockNumber
		to.LastPositiveDay = ledger.TruncateDay(date)
	}
	return nil
}

func applyNFTTransfer(l *ledger.Ledger, ev model.Event) {
	if !ledger.IsZeroAddress(ev.From) {
		delete(l.GetOrCreate(ev.From).NFTIDs, ev.TokenID)
	}
	if !ledger.IsZeroAddress(ev.To) {
		l.GetOrCreate(ev.To).NFTIDs[ev.TokenID] = struct{}{}
	}
}
