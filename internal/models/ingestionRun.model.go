package models

import (
	"time"

	"dgisync/internal/types"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IngestionRun is the persisted record of one pipeline execution.
type IngestionRun struct {
	BaseUUIDModel
	RunID           string          `gorm:"type:text;not null;uniqueIndex:idx_ingestion_runs_run_id" json:"runId"`
	Status          types.RunStatus `gorm:"type:text;not null;index:idx_ingestion_runs_status"      json:"status"`
	ExpectedLatest  string          `gorm:"type:varchar(7);not null"                                json:"expectedLatest"`
	WindowStart     string          `gorm:"type:varchar(7);not null"                                json:"windowStart"`
	StartedAt       time.Time       `gorm:"type:timestamptz;not null;index:idx_ingestion_runs_started_at,sort:desc" json:"startedAt"`
	FinishedAt      time.Time       `gorm:"type:timestamptz;not null"                               json:"finishedAt"`
	Downloaded      int             `gorm:"type:int;default:0"                                      json:"downloaded"`
	Skipped         int             `gorm:"type:int;default:0"                                      json:"skipped"`
	NotFound        int             `gorm:"type:int;default:0"                                      json:"notFound"`
	Failed          int             `gorm:"type:int;default:0"                                      json:"failed"`
	FailedKeys      pq.StringArray  `gorm:"type:text[]"                                             json:"failedKeys"`
	NotFoundKeys    pq.StringArray  `gorm:"type:text[]"                                             json:"notFoundKeys"`
	Rows            int64           `gorm:"type:bigint;default:0"                                   json:"rows"`
	Blocks          int             `gorm:"type:int;default:0"                                      json:"blocks"`
	SentinelWritten bool            `gorm:"default:false"                                           json:"sentinelWritten"`
	Summary         datatypes.JSON  `gorm:"type:jsonb"                                              json:"summary"`
}

func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

func (r *IngestionRun) BeforeCreate(tx *gorm.DB) error {
	if r.RunID == "" || r.Status == "" {
		return gorm.ErrInvalidValue
	}
	return nil
}

// NewIngestionRun flattens a summary into its persisted form. The full
// summary is kept as JSON alongside the indexed columns.
func NewIngestionRun(summary types.RunSummary, summaryJSON []byte) *IngestionRun {
	run := &IngestionRun{
		RunID:           summary.RunID,
		Status:          summary.Status,
		ExpectedLatest:  summary.ExpectedLatest,
		WindowStart:     summary.WindowStart,
		StartedAt:       summary.StartedAt,
		FinishedAt:      summary.FinishedAt,
		Downloaded:      summary.Downloads.Downloaded,
		Skipped:         summary.Downloads.Skipped,
		NotFound:        summary.Downloads.NotFound,
		Failed:          summary.Downloads.Failed,
		FailedKeys:      pq.StringArray(summary.FailedKeys),
		NotFoundKeys:    pq.StringArray(summary.NotFoundKeys),
		SentinelWritten: summary.Sentinel.Written,
		Summary:         datatypes.JSON(summaryJSON),
	}

	if summary.Consolidation != nil {
		run.Rows = summary.Consolidation.Rows
		run.Blocks = summary.Consolidation.Blocks
	}

	return run
}
