package jobs

import (
	"dgisync/config"
	"dgisync/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	svc services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	schedule, err := services.ParseSchedule(config.Schedule)
	if err != nil {
		return log.Err("invalid ingestion schedule", err, "schedule", config.Schedule)
	}

	ingestionJob := NewIngestionJob(svc.Pipeline, svc.RunHistory, schedule)
	if err := schedulerService.AddJob(ingestionJob); err != nil {
		return log.Err("failed to register ingestion job", err)
	}
	log.Info("Registered ingestion job", "schedule", schedule.String())

	return nil
}
