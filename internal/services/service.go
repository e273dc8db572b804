package services

import (
	"context"

	"dgisync/config"
	"dgisync/internal/database"
	"dgisync/internal/events"
	"dgisync/internal/repositories"
	"dgisync/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
)

type Service struct {
	Resolver      *ResolverService
	Download      *DownloadService
	Orchestration *OrchestrationService
	Normalizer    *NormalizerService
	FileCleanup   *FileCleanupService
	Consolidation *ConsolidationService
	Sentinel      *SentinelService
	RemoteSync    *RemoteSyncService
	Pipeline      *PipelineService
	RunHistory    *RunHistoryService
	Scheduler     *SchedulerService
}

func New(
	ctx context.Context,
	db database.DB,
	config config.Config,
	eventBus *events.EventBus,
	repos repositories.Repository,
) (Service, error) {
	log := logger.New("services").Function("New")

	resolverService := NewResolverService(config)
	downloadService := NewDownloadService(config, resolverService)
	orchestrationService := NewOrchestrationService(config, downloadService, eventBus)
	normalizerService := NewNormalizerService()
	fileCleanupService := NewFileCleanupService(config)
	consolidationService := NewConsolidationService(config, normalizerService)
	sentinelService := NewSentinelService(config)

	var remoteSyncService *RemoteSyncService
	store, err := newRemoteStore(ctx, config)
	if err != nil {
		return Service{}, log.Err("failed to create remote store", err)
	}
	if store != nil {
		remoteSyncService = NewRemoteSyncService(config, store)
	} else {
		log.Info("Remote sync disabled, no remote store configured")
	}

	pipelineService := NewPipelineService(
		config,
		downloadService,
		orchestrationService,
		fileCleanupService,
		consolidationService,
		sentinelService,
		remoteSyncService,
		eventBus,
	)

	return Service{
		Resolver:      resolverService,
		Download:      downloadService,
		Orchestration: orchestrationService,
		Normalizer:    normalizerService,
		FileCleanup:   fileCleanupService,
		Consolidation: consolidationService,
		Sentinel:      sentinelService,
		RemoteSync:    remoteSyncService,
		Pipeline:      pipelineService,
		RunHistory:    NewRunHistoryService(db, repos.IngestionRun),
		Scheduler:     NewSchedulerService(),
	}, nil
}

// newRemoteStore picks the configured mirror: an S3 bucket, a directory, or
// nil when neither is set.
func newRemoteStore(ctx context.Context, config config.Config) (RemoteStore, error) {
	switch {
	case config.S3Endpoint != "":
		store, err := storage.NewObjectStore(config)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.RemoteDir != "":
		return storage.NewLocalStore(config.RemoteDir), nil
	}
	return nil, nil
}
