package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"dgisync/internal/models"
	"dgisync/internal/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var runColumns = []string{
	"id", "created_at", "updated_at", "deleted_at",
	"run_id", "status", "expected_latest", "window_start", "started_at", "finished_at",
	"downloaded", "skipped", "not_found", "failed", "failed_keys", "not_found_keys",
	"rows", "blocks", "sentinel_written", "summary",
}

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock
}

func runRow(rows *sqlmock.Rows, runID string, status types.RunStatus, started time.Time) *sqlmock.Rows {
	return rows.AddRow(
		uuid.New().String(), started, started, nil,
		runID, string(status), "2025-02", "2024-01", started, started.Add(time.Minute),
		14, 0, 0, 0, "{}", "{}",
		28, 14, true, `{"runId":"`+runID+`"}`,
	)
}

func TestIngestionRunRepository_Create(t *testing.T) {
	gormDB, mock := setupTestDB(t)
	repo := NewIngestionRunRepository(nil)

	id := uuid.New()
	mock.ExpectQuery(`INSERT INTO "ingestion_runs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	run := models.NewIngestionRun(types.RunSummary{
		RunID:      "run-1",
		Status:     types.RunStatusCompleted,
		FailedKeys: []string{},
	}, []byte(`{}`))

	err := repo.Create(context.Background(), gormDB, run)

	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestionRunRepository_CreateRejectsIncompleteRun(t *testing.T) {
	gormDB, mock := setupTestDB(t)
	repo := NewIngestionRunRepository(nil)

	err := repo.Create(context.Background(), gormDB, &models.IngestionRun{})

	assert.ErrorIs(t, err, gorm.ErrInvalidValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestionRunRepository_Latest(t *testing.T) {
	started := time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)

	t.Run("returns the newest run", func(t *testing.T) {
		gormDB, mock := setupTestDB(t)
		repo := NewIngestionRunRepository(nil)

		mock.ExpectQuery(`SELECT \* FROM "ingestion_runs" .*ORDER BY started_at DESC`).
			WillReturnRows(runRow(sqlmock.NewRows(runColumns), "run-9", types.RunStatusCompleted, started))

		run, err := repo.Latest(context.Background(), gormDB)

		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, "run-9", run.RunID)
		assert.Equal(t, types.RunStatusCompleted, run.Status)
		assert.Equal(t, int64(28), run.Rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no runs yet", func(t *testing.T) {
		gormDB, mock := setupTestDB(t)
		repo := NewIngestionRunRepository(nil)

		mock.ExpectQuery(`SELECT \* FROM "ingestion_runs"`).
			WillReturnRows(sqlmock.NewRows(runColumns))

		run, err := repo.Latest(context.Background(), gormDB)

		require.NoError(t, err)
		assert.Nil(t, run)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		gormDB, mock := setupTestDB(t)
		repo := NewIngestionRunRepository(nil)

		mock.ExpectQuery(`SELECT \* FROM "ingestion_runs"`).
			WillReturnError(errors.New("connection reset"))

		run, err := repo.Latest(context.Background(), gormDB)

		assert.Error(t, err)
		assert.Nil(t, run)
	})
}

func TestIngestionRunRepository_ListRecent(t *testing.T) {
	gormDB, mock := setupTestDB(t)
	repo := NewIngestionRunRepository(nil)
	started := time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runColumns)
	runRow(rows, "run-2", types.RunStatusAlreadyCurrent, started.Add(24*time.Hour))
	runRow(rows, "run-1", types.RunStatusCompleted, started)
	mock.ExpectQuery(`SELECT \* FROM "ingestion_runs" .*ORDER BY started_at DESC LIMIT`).
		WillReturnRows(rows)

	runs, err := repo.ListRecent(context.Background(), gormDB, 0)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestionRunRepository_GetByRunID(t *testing.T) {
	gormDB, mock := setupTestDB(t)
	repo := NewIngestionRunRepository(nil)

	mock.ExpectQuery(`SELECT \* FROM "ingestion_runs" WHERE run_id = \$1`).
		WillReturnRows(sqlmock.NewRows(runColumns))

	run, err := repo.GetByRunID(context.Background(), gormDB, "missing")

	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}
