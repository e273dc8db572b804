package models

import (
	"testing"
	"time"

	"dgisync/internal/types"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestNewIngestionRun(t *testing.T) {
	started := time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)

	t.Run("flattens counts and consolidation", func(t *testing.T) {
		summary := types.RunSummary{
			RunID:          "run-1",
			Status:         types.RunStatusCompletedWithFailures,
			StartedAt:      started,
			FinishedAt:     started.Add(time.Minute),
			ExpectedLatest: "2025-02",
			WindowStart:    "2024-01",
			Downloads:      types.DownloadCounts{Downloaded: 12, Skipped: 1, Failed: 1},
			FailedKeys:     []string{"2024-06"},
			NotFoundKeys:   []string{},
			Consolidation:  &types.ConsolidationResult{Rows: 420, Blocks: 13},
			Sentinel:       types.SentinelState{Written: true, After: "2025-02"},
		}

		run := NewIngestionRun(summary, []byte(`{"runId":"run-1"}`))

		assert.Equal(t, "run-1", run.RunID)
		assert.Equal(t, types.RunStatusCompletedWithFailures, run.Status)
		assert.Equal(t, 12, run.Downloaded)
		assert.Equal(t, 1, run.Skipped)
		assert.Equal(t, 1, run.Failed)
		assert.Equal(t, []string{"2024-06"}, []string(run.FailedKeys))
		assert.Equal(t, int64(420), run.Rows)
		assert.Equal(t, 13, run.Blocks)
		assert.True(t, run.SentinelWritten)
		assert.JSONEq(t, `{"runId":"run-1"}`, string(run.Summary))
	})

	t.Run("short circuit run has no consolidation", func(t *testing.T) {
		run := NewIngestionRun(types.RunSummary{RunID: "run-2", Status: types.RunStatusAlreadyCurrent}, nil)

		assert.Zero(t, run.Rows)
		assert.Zero(t, run.Blocks)
		assert.False(t, run.SentinelWritten)
	})
}

func TestIngestionRun_BeforeCreate(t *testing.T) {
	tests := []struct {
		name    string
		run     IngestionRun
		wantErr bool
	}{
		{"valid", IngestionRun{RunID: "run-1", Status: types.RunStatusCompleted}, false},
		{"missing run id", IngestionRun{Status: types.RunStatusCompleted}, true},
		{"missing status", IngestionRun{RunID: "run-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.BeforeCreate(nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, gorm.ErrInvalidValue)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIngestionRun_TableName(t *testing.T) {
	assert.Equal(t, "ingestion_runs", IngestionRun{}.TableName())
}
