package utils

import (
	"testing"
	"time"

	"dgisync/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 10, 0, 0, 0, time.UTC)
}

func TestExpectedLatest(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want types.PeriodKey
	}{
		{"january rolls back a year", at(2025, time.January, 15), types.NewPeriodKey(2024, 12)},
		{"march", at(2025, time.March, 1), types.NewPeriodKey(2025, 2)},
		{"december", at(2025, time.December, 31), types.NewPeriodKey(2025, 11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpectedLatest(tt.now))
		})
	}
}

func TestEnumerateWindow_DepthOneInMarch(t *testing.T) {
	keys := EnumerateWindow(at(2025, time.March, 10), 1)

	require.Len(t, keys, 14)
	assert.Equal(t, types.NewPeriodKey(2024, 1), keys[0])
	assert.Equal(t, types.NewPeriodKey(2025, 2), keys[len(keys)-1])
}

func TestEnumerateWindow_Properties(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		for depth := 0; depth <= 5; depth++ {
			now := at(2025, month, 28)
			keys := EnumerateWindow(now, depth)
			latest := ExpectedLatest(now)
			start := WindowStart(now, depth)

			for i := 1; i < len(keys); i++ {
				assert.Equal(t, keys[i-1].Next(), keys[i], "gap-free and increasing")
			}
			for _, key := range keys {
				assert.False(t, key.Less(start))
				assert.False(t, latest.Less(key))
			}
			if len(keys) > 0 {
				assert.Equal(t, start, keys[0])
				assert.Equal(t, latest, keys[len(keys)-1])
			}
		}
	}
}

func TestEnumerateWindow_EmptyWhenInverted(t *testing.T) {
	assert.Empty(t, EnumerateWindow(at(2025, time.January, 5), 0))
}

func TestEnumerateWindow_LastDayOfMonth(t *testing.T) {
	keys := EnumerateWindow(at(2024, time.March, 31), 0)
	require.Len(t, keys, 2)
	assert.Equal(t, types.NewPeriodKey(2024, 2), keys[1])
}
