package ledger

import "errors"

var (
	// ErrNegativeBalance signals corrupted or out-of-order input.
	ErrNegativeBalance = errors.New("negative balance")
	// ErrMissingVestingDay is returned for a positive balance with no positive update day.
	ErrMissingVestingDay = errors.New("positive balance without last positive balance update day")
	// ErrMalformedDay is returned when a vesting date cannot be parsed.
	ErrMalformedDay = errors.New("malformed day")
)
