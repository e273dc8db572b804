package utils

import (
	"time"

	"dgisync/internal/types"
)

// ExpectedLatest is the newest period that should already be published at
// now: the month before the current one.
func ExpectedLatest(now time.Time) types.PeriodKey {
	current := types.NewPeriodKey(now.Year(), int(now.Month()))
	return current.Prev()
}

// WindowStart is the first period kept for a retention depth in years.
func WindowStart(now time.Time, depthYears int) types.PeriodKey {
	return types.NewPeriodKey(now.Year()-depthYears, 1)
}

// EnumerateWindow lists every period from WindowStart to ExpectedLatest
// inclusive in increasing order. The result is empty when the window is
// inverted, e.g. depth 0 in January.
func EnumerateWindow(now time.Time, depthYears int) []types.PeriodKey {
	start := WindowStart(now, depthYears)
	end := ExpectedLatest(now)

	var keys []types.PeriodKey
	for key := start; !end.Less(key); key = key.Next() {
		keys = append(keys, key)
	}
	return keys
}
