package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dgisync/internal/database"
	"dgisync/internal/models"
	"dgisync/internal/repositories"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

var ErrHistoryDisabled = errors.New("run history is not configured")

// RunHistoryService persists run summaries. Without a SQL database every
// write is a no-op and every read returns ErrHistoryDisabled.
type RunHistoryService struct {
	db   database.DB
	repo repositories.IngestionRunRepository
	log  logger.Logger
}

func NewRunHistoryService(db database.DB, repo repositories.IngestionRunRepository) *RunHistoryService {
	return &RunHistoryService{
		db:   db,
		repo: repo,
		log:  logger.New("runHistoryService"),
	}
}

func (h *RunHistoryService) Enabled() bool {
	return h.db.SQL != nil
}

// Execute runs fn inside a transaction, committing on success and rolling
// back on error or panic. A failed rollback after a panic re-panics.
func (h *RunHistoryService) Execute(
	ctx context.Context,
	fn func(context.Context, *gorm.DB) error,
) (err error) {
	log := h.log.Function("Execute")

	tx := h.db.SQLWithContext(ctx).Begin()
	if tx.Error != nil {
		return log.Err("failed to begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := log.ErrMsg(fmt.Sprintf("panic during transaction: %v", r))

			if rollbackErr := tx.Rollback().Error; rollbackErr != nil {
				log.Er("failed to rollback after panic", rollbackErr, "panic", r)
				panic(fmt.Sprintf("transaction rollback failed: %v (original panic: %v)", rollbackErr, r))
			}

			err = panicErr
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback().Error; rollbackErr != nil {
			return log.Error("transaction rollback failed", "rollbackError", rollbackErr, "originalError", err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return log.Err("failed to commit transaction", err)
	}

	return nil
}

// Record stores summary once; a run id that is already stored is left as is.
func (h *RunHistoryService) Record(ctx context.Context, summary types.RunSummary) error {
	if !h.Enabled() {
		return nil
	}

	log := h.log.Function("Record")

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return log.Err("failed to encode run summary", err, "runId", summary.RunID)
	}

	return h.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		existing, err := h.repo.GetByRunID(ctx, tx, summary.RunID)
		if err != nil {
			return err
		}
		if existing != nil {
			log.Info("Run already recorded", "runId", summary.RunID)
			return nil
		}

		return h.repo.Create(ctx, tx, models.NewIngestionRun(summary, summaryJSON))
	})
}

func (h *RunHistoryService) Latest(ctx context.Context) (*models.IngestionRun, error) {
	if !h.Enabled() {
		return nil, ErrHistoryDisabled
	}
	return h.repo.Latest(ctx, h.db.SQLWithContext(ctx))
}

func (h *RunHistoryService) Recent(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	if !h.Enabled() {
		return nil, ErrHistoryDisabled
	}
	return h.repo.ListRecent(ctx, h.db.SQLWithContext(ctx), limit)
}
