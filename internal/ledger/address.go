package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress marks the mint source and the burn destination.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress returns the canonical lowercase 0x-prefixed form.
// Inputs that are not hex addresses are lowercased and trimmed only.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// IsZeroAddress reports whether addr is the zero address in any casing.
func IsZeroAddress(addr string) bool {
	return NormalizeAddress(addr) == ZeroAddress
}
