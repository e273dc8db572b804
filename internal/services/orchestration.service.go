package services

import (
	"context"
	"sync"

	"dgisync/config"
	appContext "dgisync/internal/context"
	"dgisync/internal/events"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

// Fetcher resolves one period to a final outcome.
type Fetcher interface {
	Fetch(ctx context.Context, key types.PeriodKey) types.DownloadOutcome
}

type OrchestrationService struct {
	fetcher  Fetcher
	workers  int
	eventBus *events.EventBus
	log      logger.Logger
}

func NewOrchestrationService(
	config config.Config,
	fetcher Fetcher,
	eventBus *events.EventBus,
) *OrchestrationService {
	workers := config.DownloadConcurrency
	if workers <= 0 {
		workers = DefaultDownloadConcurrency
	}

	return &OrchestrationService{
		fetcher:  fetcher,
		workers:  workers,
		eventBus: eventBus,
		log:      logger.New("orchestrationService"),
	}
}

type keyOutcome struct {
	key     types.PeriodKey
	outcome types.DownloadOutcome
}

// DownloadAll fetches every key on a fixed pool of workers and returns the
// outcome ledger. Completion order does not affect the report.
func (o *OrchestrationService) DownloadAll(ctx context.Context, keys []types.PeriodKey) types.DownloadReport {
	log := o.log.Function("DownloadAll")
	timer := log.Timer("Download phase")
	defer timer()

	report := types.NewDownloadReport()
	if len(keys) == 0 {
		return report
	}

	workers := min(o.workers, len(keys))
	log.Info("Starting downloads", "periods", len(keys), "workers", workers)

	jobs := make(chan types.PeriodKey)
	results := make(chan keyOutcome)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				results <- keyOutcome{key: key, outcome: o.fetcher.Fetch(ctx, key)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, key := range keys {
			jobs <- key
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	runID, _ := appContext.GetRunID(ctx)
	completed := 0
	for result := range results {
		completed++
		report.Record(result.key, result.outcome)
		o.reportProgress(runID, result, completed, len(keys))
	}

	report.Finalize()
	log.Info("Downloads finished",
		"downloaded", report.Counts.Downloaded,
		"skipped", report.Counts.Skipped,
		"notFound", report.Counts.NotFound,
		"failed", report.Counts.Failed)

	return report
}

func (o *OrchestrationService) reportProgress(runID string, result keyOutcome, completed, total int) {
	log := o.log.Function("reportProgress")
	log.Info("Period finished",
		"key", result.key.String(),
		"outcome", result.outcome,
		"completed", completed,
		"total", total)

	if o.eventBus == nil {
		return
	}

	err := o.eventBus.PublishDownloadProgress(types.DownloadProgressEvent{
		RunID:     runID,
		Key:       result.key.String(),
		Outcome:   result.outcome,
		Completed: completed,
		Total:     total,
	})
	if err != nil {
		log.Warn("Failed to publish download progress", "error", err)
	}
}
