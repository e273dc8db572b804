package repositories

import (
	"context"
	"errors"
	"time"

	"dgisync/internal/database"
	. "dgisync/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

const (
	INGESTION_RUN_CACHE_PREFIX = "ingestion_run"
	LATEST_RUN_CACHE_KEY       = "latest"
	LATEST_RUN_CACHE_EXPIRY    = 7 * 24 * time.Hour
	DEFAULT_RUN_LIST_LIMIT     = 20
	MAX_RUN_LIST_LIMIT         = 200
)

type IngestionRunRepository interface {
	Create(ctx context.Context, tx *gorm.DB, run *IngestionRun) error
	GetByRunID(ctx context.Context, tx *gorm.DB, runID string) (*IngestionRun, error)
	Latest(ctx context.Context, tx *gorm.DB) (*IngestionRun, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*IngestionRun, error)
}

type ingestionRunRepository struct {
	cache database.CacheClient
	log   logger.Logger
}

// NewIngestionRunRepository returns a repository that caches the latest run
// in cache when cache is not nil.
func NewIngestionRunRepository(cache database.CacheClient) IngestionRunRepository {
	return &ingestionRunRepository{
		cache: cache,
		log:   logger.New("ingestionRunRepository"),
	}
}

func (r *ingestionRunRepository) Create(ctx context.Context, tx *gorm.DB, run *IngestionRun) error {
	log := r.log.Function("Create")

	if err := gorm.G[IngestionRun](tx).Create(ctx, run); err != nil {
		return log.Err("failed to create ingestion run", err, "runId", run.RunID, "status", run.Status)
	}

	r.cacheLatest(ctx, run)
	return nil
}

func (r *ingestionRunRepository) GetByRunID(ctx context.Context, tx *gorm.DB, runID string) (*IngestionRun, error) {
	log := r.log.Function("GetByRunID")

	run, err := gorm.G[IngestionRun](tx).Where("run_id = ?", runID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get ingestion run", err, "runId", runID)
	}

	return &run, nil
}

// Latest returns the most recently started run, or nil when none exist.
func (r *ingestionRunRepository) Latest(ctx context.Context, tx *gorm.DB) (*IngestionRun, error) {
	log := r.log.Function("Latest")

	if r.cache != nil {
		var cached IngestionRun
		found, err := database.NewCacheBuilder(r.cache, LATEST_RUN_CACHE_KEY).
			WithContext(ctx).
			WithHash(INGESTION_RUN_CACHE_PREFIX).
			Get(&cached)
		if err != nil {
			log.Warn("failed to read latest run from cache", "error", err)
		} else if found {
			return &cached, nil
		}
	}

	run, err := gorm.G[IngestionRun](tx).Order("started_at DESC").First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get latest ingestion run", err)
	}

	r.cacheLatest(ctx, &run)
	return &run, nil
}

func (r *ingestionRunRepository) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*IngestionRun, error) {
	log := r.log.Function("ListRecent")

	if limit <= 0 {
		limit = DEFAULT_RUN_LIST_LIMIT
	}
	limit = min(limit, MAX_RUN_LIST_LIMIT)

	runs, err := gorm.G[IngestionRun](tx).Order("started_at DESC").Limit(limit).Find(ctx)
	if err != nil {
		return nil, log.Err("failed to list ingestion runs", err, "limit", limit)
	}

	result := make([]*IngestionRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (r *ingestionRunRepository) cacheLatest(ctx context.Context, run *IngestionRun) {
	if r.cache == nil {
		return
	}

	err := database.NewCacheBuilder(r.cache, LATEST_RUN_CACHE_KEY).
		WithContext(ctx).
		WithHash(INGESTION_RUN_CACHE_PREFIX).
		WithStruct(run).
		WithTTL(LATEST_RUN_CACHE_EXPIRY).
		Set()
	if err != nil {
		r.log.Warn("failed to cache latest run", "runId", run.RunID, "error", err)
	}
}
