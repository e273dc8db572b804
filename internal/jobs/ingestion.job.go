package jobs

import (
	"context"
	"errors"

	"dgisync/internal/services"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

const INGESTION_JOB_NAME = "DgiIngestion"

type PipelineRunner interface {
	Run(ctx context.Context) (types.RunSummary, error)
}

type RunRecorder interface {
	Record(ctx context.Context, summary types.RunSummary) error
}

type IngestionJob struct {
	pipeline PipelineRunner
	history  RunRecorder
	log      logger.Logger
	schedule services.Schedule
}

func NewIngestionJob(
	pipeline PipelineRunner,
	history RunRecorder,
	schedule services.Schedule,
) *IngestionJob {
	log := logger.New("ingestionJob")
	log.Info("Creating ingestion job", "schedule", schedule.String())

	return &IngestionJob{
		pipeline: pipeline,
		history:  history,
		log:      log,
		schedule: schedule,
	}
}

func (j *IngestionJob) Name() string {
	return INGESTION_JOB_NAME
}

func (j *IngestionJob) Schedule() services.Schedule {
	return j.schedule
}

// Execute runs one pipeline pass and records it. An overlapping trigger is
// logged and dropped rather than treated as a failure.
func (j *IngestionJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	summary, err := j.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			log.Info("Ingestion already running, trigger dropped")
			return nil
		}
		return log.Err("ingestion run failed", err)
	}

	if !summary.Status.Healthy() {
		log.Warn("Ingestion needs attention",
			"runId", summary.RunID,
			"status", summary.Status,
			"failedKeys", summary.FailedKeys,
			"error", summary.Error)
	}

	if j.history != nil {
		if err := j.history.Record(ctx, summary); err != nil {
			return log.Err("failed to record ingestion run", err, "runId", summary.RunID)
		}
	}

	log.Info("Ingestion finished", "runId", summary.RunID, "status", summary.Status)
	return nil
}
