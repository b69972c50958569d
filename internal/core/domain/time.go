package domain

import (
	"math/big"
	"time"
)

// TimeFromLedger converts a ledger timestamp in seconds. Non-positive or
// missing values become now, never the epoch.
func TimeFromLedger(seconds *big.Int, now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	if seconds == nil || seconds.Sign() <= 0 || !seconds.IsInt64() {
		return now().UTC()
	}
	return time.Unix(seconds.Int64(), 0).UTC()
}

// TimeToLedger is the inverse of TimeFromLedger for non-zero times.
func TimeToLedger(t time.Time) *big.Int {
	if t.IsZero() {
		return big.NewInt(0)
	}
	return big.NewInt(t.Unix())
}
