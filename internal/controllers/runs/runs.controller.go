package runsController

import (
	"context"
	"errors"
	"time"

	"dgisync/internal/jobs"
	"dgisync/internal/models"
	"dgisync/internal/services"
	"dgisync/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
)

var ErrNotFound = errors.New("not found")

type historyReader interface {
	Enabled() bool
	Latest(ctx context.Context) (*models.IngestionRun, error)
	Recent(ctx context.Context, limit int) ([]*models.IngestionRun, error)
}

type jobTrigger interface {
	TriggerJobByName(jobName string) error
	IsRunning() bool
	GetNextRunTime() *time.Time
}

type sentinelReader interface {
	Read() (string, error)
}

type StatusResponse struct {
	ExpectedLatest   string     `json:"expectedLatest"`
	Sentinel         string     `json:"sentinel"`
	UpToDate         bool       `json:"upToDate"`
	SchedulerRunning bool       `json:"schedulerRunning"`
	NextRun          *time.Time `json:"nextRun,omitempty"`
	HistoryEnabled   bool       `json:"historyEnabled"`
}

type RunsControllerInterface interface {
	Status(ctx context.Context) (*StatusResponse, error)
	ListRuns(ctx context.Context, limit int) ([]*models.IngestionRun, error)
	LatestRun(ctx context.Context) (*models.IngestionRun, error)
	Trigger() error
}

type RunsController struct {
	history   historyReader
	scheduler jobTrigger
	sentinel  sentinelReader
	clock     func() time.Time
	log       logger.Logger
}

func New(services services.Service) RunsControllerInterface {
	return newController(services.RunHistory, services.Scheduler, services.Sentinel, time.Now)
}

func newController(
	history historyReader,
	scheduler jobTrigger,
	sentinel sentinelReader,
	clock func() time.Time,
) *RunsController {
	return &RunsController{
		history:   history,
		scheduler: scheduler,
		sentinel:  sentinel,
		clock:     clock,
		log:       logger.New("runsController"),
	}
}

// Status compares the sentinel to the period expected today without touching
// the upstream source.
func (rc *RunsController) Status(ctx context.Context) (*StatusResponse, error) {
	log := rc.log.Function("Status")

	stored, err := rc.sentinel.Read()
	if err != nil {
		return nil, log.Err("failed to read sentinel", err)
	}

	expected := utils.ExpectedLatest(rc.clock()).String()

	return &StatusResponse{
		ExpectedLatest:   expected,
		Sentinel:         stored,
		UpToDate:         stored == expected,
		SchedulerRunning: rc.scheduler.IsRunning(),
		NextRun:          rc.scheduler.GetNextRunTime(),
		HistoryEnabled:   rc.history.Enabled(),
	}, nil
}

func (rc *RunsController) ListRuns(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	return rc.history.Recent(ctx, limit)
}

func (rc *RunsController) LatestRun(ctx context.Context) (*models.IngestionRun, error) {
	run, err := rc.history.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// Trigger starts an ingestion run in the background.
func (rc *RunsController) Trigger() error {
	return rc.scheduler.TriggerJobByName(jobs.INGESTION_JOB_NAME)
}
