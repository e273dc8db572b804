package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"dgisync/config"
	appContext "dgisync/internal/context"
	"dgisync/internal/events"
	"dgisync/internal/types"
	"dgisync/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type PipelineService struct {
	retentionYears int
	download       *DownloadService
	orchestration  *OrchestrationService
	fileCleanup    *FileCleanupService
	consolidation  *ConsolidationService
	sentinel       *SentinelService
	remoteSync     *RemoteSyncService
	eventBus       *events.EventBus
	clock          func() time.Time
	running        sync.Mutex
	log            logger.Logger
}

func NewPipelineService(
	config config.Config,
	download *DownloadService,
	orchestration *OrchestrationService,
	fileCleanup *FileCleanupService,
	consolidation *ConsolidationService,
	sentinel *SentinelService,
	remoteSync *RemoteSyncService,
	eventBus *events.EventBus,
) *PipelineService {
	return &PipelineService{
		retentionYears: config.RetentionYears,
		download:       download,
		orchestration:  orchestration,
		fileCleanup:    fileCleanup,
		consolidation:  consolidation,
		sentinel:       sentinel,
		remoteSync:     remoteSync,
		eventBus:       eventBus,
		clock:          time.Now,
		log:            logger.New("pipelineService"),
	}
}

// WithClock replaces the wall clock, mainly for tests.
func (p *PipelineService) WithClock(clock func() time.Time) *PipelineService {
	p.clock = clock
	return p
}

// Run executes one ingestion pass. Every terminal state, including "nothing
// to do" and failed builds, is reported through the summary; the only error
// is ErrRunInProgress when another Run holds the pipeline.
func (p *PipelineService) Run(ctx context.Context) (summary types.RunSummary, runErr error) {
	if !p.running.TryLock() {
		return types.RunSummary{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	runID := uuid.New().String()
	ctx = appContext.WithRunID(ctx, runID)
	log := p.log.Function("Run").With("runId", runID)

	now := p.clock()
	expected := utils.ExpectedLatest(now)
	windowStart := utils.WindowStart(now, p.retentionYears)
	keys := utils.EnumerateWindow(now, p.retentionYears)

	summary = types.RunSummary{
		RunID:          runID,
		StartedAt:      now.UTC(),
		ExpectedLatest: expected.String(),
		WindowStart:    windowStart.String(),
		Periods:        len(keys),
		FailedKeys:     []string{},
		NotFoundKeys:   []string{},
	}
	defer func() {
		summary.FinishedAt = p.clock().UTC()
		p.publishCompleted(summary)
		log.Info("Run finished", "status", summary.Status)
	}()

	stored, err := p.sentinel.Read()
	if err != nil {
		log.Warn("Sentinel unreadable, continuing as if absent", "error", err)
	}
	summary.Sentinel.Before = stored
	summary.Sentinel.After = stored

	if p.sentinel.IsCurrent(stored, expected) {
		log.Info("Already current", "expected", expected.String())
		summary.Status = types.RunStatusAlreadyCurrent
		return summary, nil
	}

	p.publishStarted(runID, expected)

	if !p.download.Probe(ctx, expected) {
		log.Info("Expected period not yet published", "expected", expected.String())
		summary.Status = types.RunStatusNotPublished
		return summary, nil
	}

	report := p.orchestration.DownloadAll(ctx, keys)
	summary.Downloads = report.Counts
	summary.FailedKeys = types.KeyStrings(report.FailedKeys)
	summary.NotFoundKeys = types.KeyStrings(report.NotFoundKeys)

	idx, err := p.fileCleanup.Index(ctx)
	if err != nil {
		summary.Status = types.RunStatusBuildFailed
		summary.Error = err.Error()
		return summary, nil
	}

	pruned, err := p.fileCleanup.Prune(ctx, idx, windowStart)
	summary.PrunedLocal = pruned
	if err != nil {
		log.Warn("Local retention incomplete", "error", err)
	}

	changed := report.Counts.Downloaded > 0 || pruned > 0
	consolidation, err := p.consolidation.Consolidate(ctx, idx, changed)
	if err != nil {
		if !errors.Is(err, ErrConsolidationEmpty) {
			log.Er("Consolidation failed", err)
		}
		summary.Consolidation = &consolidation
		summary.Sentinel.WriteSkipped = true
		summary.Status = types.RunStatusBuildFailed
		summary.Error = err.Error()
		return summary, nil
	}
	summary.Consolidation = &consolidation

	p.updateSentinel(&summary, idx, expected)

	if p.remoteSync != nil {
		syncResult := p.remoteSync.Sync(ctx, idx, &consolidation, windowStart)
		summary.Sync = &syncResult
	}

	summary.Status = types.RunStatusCompleted
	if report.Counts.Failed > 0 || (summary.Sync != nil && summary.Sync.Failed > 0) {
		summary.Status = types.RunStatusCompletedWithFailures
	}

	return summary, nil
}

// updateSentinel advances the sentinel only if the expected period's document
// is on disk after the run.
func (p *PipelineService) updateSentinel(summary *types.RunSummary, idx *LocalIndex, expected types.PeriodKey) {
	log := p.log.Function("updateSentinel")

	if !idx.Has(expected) {
		log.Warn("Expected document missing locally, sentinel not written", "expected", expected.String())
		summary.Sentinel.WriteSkipped = true
		return
	}

	if err := p.sentinel.Write(expected); err != nil {
		log.Warn("Sentinel not written", "expected", expected.String(), "error", err)
		summary.Sentinel.WriteSkipped = true
		return
	}

	summary.Sentinel.After = expected.String()
	summary.Sentinel.Written = true
}

func (p *PipelineService) publishStarted(runID string, expected types.PeriodKey) {
	if p.eventBus == nil {
		return
	}
	if err := p.eventBus.PublishRunStarted(runID, expected.String()); err != nil {
		p.log.Function("publishStarted").Warn("Failed to publish run start", "error", err)
	}
}

func (p *PipelineService) publishCompleted(summary types.RunSummary) {
	if p.eventBus == nil {
		return
	}
	if err := p.eventBus.PublishRunCompleted(summary); err != nil {
		p.log.Function("publishCompleted").Warn("Failed to publish run summary", "error", err)
	}
}
