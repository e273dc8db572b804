package runsController

import (
	"context"
	"errors"
	"testing"
	"time"

	"dgisync/internal/models"
	"dgisync/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	enabled bool
	latest  *models.IngestionRun
	recent  []*models.IngestionRun
	err     error
}

func (f *fakeHistory) Enabled() bool { return f.enabled }

func (f *fakeHistory) Latest(ctx context.Context) (*models.IngestionRun, error) {
	return f.latest, f.err
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	return f.recent, f.err
}

type fakeScheduler struct {
	triggered []string
	err       error
	next      *time.Time
}

func (f *fakeScheduler) TriggerJobByName(name string) error {
	f.triggered = append(f.triggered, name)
	return f.err
}

func (f *fakeScheduler) IsRunning() bool            { return f.next != nil }
func (f *fakeScheduler) GetNextRunTime() *time.Time { return f.next }

type fakeSentinel struct {
	value string
	err   error
}

func (f fakeSentinel) Read() (string, error) { return f.value, f.err }

var controllerNow = func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }

func TestRunsController_Status(t *testing.T) {
	next := time.Date(2025, time.March, 11, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sentinel string
		upToDate bool
	}{
		{"current", "2025-02", true},
		{"behind", "2025-01", false},
		{"never ingested", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newController(&fakeHistory{enabled: true}, &fakeScheduler{next: &next}, fakeSentinel{value: tt.sentinel}, controllerNow)

			status, err := rc.Status(context.Background())

			require.NoError(t, err)
			assert.Equal(t, "2025-02", status.ExpectedLatest)
			assert.Equal(t, tt.sentinel, status.Sentinel)
			assert.Equal(t, tt.upToDate, status.UpToDate)
			assert.True(t, status.SchedulerRunning)
			assert.Equal(t, &next, status.NextRun)
			assert.True(t, status.HistoryEnabled)
		})
	}
}

func TestRunsController_StatusSentinelError(t *testing.T) {
	rc := newController(&fakeHistory{}, &fakeScheduler{}, fakeSentinel{err: errors.New("permission denied")}, controllerNow)

	_, err := rc.Status(context.Background())

	assert.EqualError(t, err, "permission denied")
}

func TestRunsController_LatestRun(t *testing.T) {
	t.Run("no runs recorded", func(t *testing.T) {
		rc := newController(&fakeHistory{enabled: true}, &fakeScheduler{}, fakeSentinel{}, controllerNow)

		_, err := rc.LatestRun(context.Background())

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("history disabled", func(t *testing.T) {
		rc := newController(&fakeHistory{err: services.ErrHistoryDisabled}, &fakeScheduler{}, fakeSentinel{}, controllerNow)

		_, err := rc.LatestRun(context.Background())

		assert.ErrorIs(t, err, services.ErrHistoryDisabled)
	})

	t.Run("returns the run", func(t *testing.T) {
		run := &models.IngestionRun{RunID: "run-1"}
		rc := newController(&fakeHistory{enabled: true, latest: run}, &fakeScheduler{}, fakeSentinel{}, controllerNow)

		got, err := rc.LatestRun(context.Background())

		require.NoError(t, err)
		assert.Same(t, run, got)
	})
}

func TestRunsController_Trigger(t *testing.T) {
	scheduler := &fakeScheduler{}
	rc := newController(&fakeHistory{}, scheduler, fakeSentinel{}, controllerNow)

	require.NoError(t, rc.Trigger())
	assert.Equal(t, []string{"DgiIngestion"}, scheduler.triggered)
}
