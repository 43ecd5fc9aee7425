package rules

import "strconv"

// PairKey is the canonical unordered key for a participant pair, used by the
// anti-repeat ledger. PairKey(a, b) == PairKey(b, a).
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
}
