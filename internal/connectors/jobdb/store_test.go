package jobdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-laue-run-monitor/internal/config"
	"go-laue-run-monitor/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Config{
		DBDriver:       "sqlite",
		DBPath:         filepath.Join(t.TempDir(), "portal.db"),
		DBConnTimeout:  5 * time.Second,
		DBQueryTimeout: 5 * time.Second,
	}
	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func at(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Config{DBDriver: "postgres", DBConnTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported db driver")
}

func TestOpenBootstrapsSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.db")
	cfg := config.Config{DBDriver: "sqlite", DBPath: path, DBConnTimeout: 5 * time.Second, DBQueryTimeout: 5 * time.Second}

	first, err := Open(cfg)
	require.NoError(t, err)
	_, err = first.InsertJob(context.Background(), model.JobRow{JobID: 1, ComputerName: "polaris"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(cfg)
	require.NoError(t, err)
	defer second.Close()
	jobs, err := second.ListJobRows(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "sqlite", second.Driver())
}

func TestListJobRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.now = func() time.Time { return *at("2025-05-01 12:00:00") }

	_, err := store.InsertJob(ctx, model.JobRow{JobID: 1, ComputerName: "polaris", Status: model.StatusFinished,
		SubmitTime: at("2025-05-01 09:00:00"), StartTime: at("2025-05-01 09:01:00"), FinishTime: at("2025-05-01 10:00:00")})
	require.NoError(t, err)
	_, err = store.InsertJob(ctx, model.JobRow{JobID: 2, ComputerName: "polaris", Status: model.StatusRunning,
		SubmitTime: at("2025-05-01 11:00:00"), StartTime: at("2025-05-01 11:00:00")})
	require.NoError(t, err)

	for _, sj := range []model.SubJobRow{
		{SubJobID: 21, ParentJobID: 2, Status: model.StatusFinished, StartTime: at("2025-05-01 11:00:00"), FinishTime: at("2025-05-01 11:30:00")},
		{SubJobID: 23, ParentJobID: 2, Status: model.StatusQueued},
		{SubJobID: 22, ParentJobID: 2, Status: model.StatusRunning, StartTime: at("2025-05-01 11:30:00")},
	} {
		_, err := store.InsertSubJob(ctx, sj)
		require.NoError(t, err)
	}
	reconID, err := store.InsertReference(ctx, RefRecon, 2, 77, "operator", "")
	require.NoError(t, err)

	jobs, err := store.ListJobRows(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	running := jobs[0]
	assert.Equal(t, int64(2), running.JobID, "newest job first")
	assert.Equal(t, model.StatusRunning, running.Status)
	require.NotNil(t, running.ReconID)
	assert.Equal(t, reconID, *running.ReconID)
	assert.Nil(t, running.CalibID)
	assert.Equal(t, 3, running.TotalSubjobs)
	assert.Equal(t, 1, running.CompletedSubjobs)
	assert.Equal(t, 1, running.RunningSubjobs)
	assert.Equal(t, 1, running.QueuedSubjobs)
	assert.True(t, running.ShouldAutoExpand)

	require.Len(t, running.Subjobs, 3)
	assert.Equal(t, []int64{21, 22, 23}, []int64{running.Subjobs[0].SubJobID, running.Subjobs[1].SubJobID, running.Subjobs[2].SubJobID})
	assert.Equal(t, "0h 30m 0s", running.Subjobs[0].DurationDisplay)
	assert.Equal(t, "0h 30m 0s (running)", running.Subjobs[1].DurationDisplay)
	assert.Equal(t, "", running.Subjobs[2].DurationDisplay)

	done := jobs[1]
	assert.Equal(t, 0, done.TotalSubjobs)
	assert.False(t, done.ShouldAutoExpand)
	require.NotNil(t, done.StartTime)
	assert.Equal(t, "2025-05-01 09:01:00", done.StartTime.Format("2006-01-02 15:04:05"))
}

func TestListJobRowsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		_, err := store.InsertJob(ctx, model.JobRow{JobID: i})
		require.NoError(t, err)
	}

	jobs, err := store.ListJobRows(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(5), jobs[0].JobID)
	assert.Equal(t, int64(4), jobs[1].JobID)

	all, err := store.ListJobRows(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGetJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.now = func() time.Time { return *at("2025-05-01 12:00:00") }

	_, err := store.InsertJob(ctx, model.JobRow{JobID: 9, Status: model.StatusRunning, StartTime: at("2025-05-01 11:00:00")})
	require.NoError(t, err)
	_, err = store.InsertSubJob(ctx, model.SubJobRow{ParentJobID: 9, Status: model.StatusRunning, StartTime: at("2025-05-01 11:00:00")})
	require.NoError(t, err)
	calibID, err := store.InsertReference(ctx, RefCalib, 9, 100, "beamline", "first pass")
	require.NoError(t, err)
	_, err = store.InsertReference(ctx, RefPeakIndex, 9, 100, "", "")
	require.NoError(t, err)

	detail, err := store.GetJob(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), detail.Job.JobID)
	assert.Equal(t, "1h 0m 0s (running)", detail.DurationDisplay)
	assert.True(t, detail.Cancellable)
	assert.Equal(t, "beamline", detail.Author)
	assert.Equal(t, "first pass", detail.Notes)
	require.Len(t, detail.Subjobs, 1)
	require.Len(t, detail.Related, 2)
	assert.Equal(t, model.RelatedEntity{Kind: "Calibration", ID: calibID, ScanNumber: detail.Related[0].ScanNumber}, detail.Related[0])
	require.NotNil(t, detail.Related[0].ScanNumber)
	assert.Equal(t, int64(100), *detail.Related[0].ScanNumber)
	assert.Equal(t, "Peak Index", detail.Related[1].Kind)
}

func TestGetJobNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetJob(context.Background(), 404)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobDuration(t *testing.T) {
	now := *at("2025-05-01 12:00:00")
	assert.Equal(t, "—", jobDuration(model.JobRow{Status: model.StatusQueued}, now))
	assert.Equal(t, "—", jobDuration(model.JobRow{Status: model.StatusFailed, StartTime: at("2025-05-01 11:00:00")}, now))
	assert.Equal(t, "0h 5m 0s", jobDuration(model.JobRow{StartTime: at("2025-05-01 11:00:00"), FinishTime: at("2025-05-01 11:05:00")}, now))
}

func TestSetSubJobStatusFlipsAutoExpand(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.InsertJob(ctx, model.JobRow{JobID: 1, Status: model.StatusFinished})
	require.NoError(t, err)
	sjID, err := store.InsertSubJob(ctx, model.SubJobRow{ParentJobID: 1, Status: model.StatusQueued})
	require.NoError(t, err)

	jobs, err := store.ListJobRows(ctx, 10)
	require.NoError(t, err)
	assert.False(t, jobs[0].ShouldAutoExpand, "queued subjobs of a finished job do not auto-expand")

	require.NoError(t, store.SetSubJobStatus(ctx, sjID, model.StatusRunning, *at("2025-05-01 12:00:00")))
	jobs, err = store.ListJobRows(ctx, 10)
	require.NoError(t, err)
	assert.True(t, jobs[0].ShouldAutoExpand)
	require.NotNil(t, jobs[0].Subjobs[0].StartTime)

	require.NoError(t, store.SetSubJobStatus(ctx, sjID, model.StatusFinished, *at("2025-05-01 12:10:00")))
	jobs, err = store.ListJobRows(ctx, 10)
	require.NoError(t, err)
	assert.False(t, jobs[0].ShouldAutoExpand)
	assert.Equal(t, 1, jobs[0].CompletedSubjobs)
	assert.Equal(t, "0h 10m 0s", jobs[0].Subjobs[0].DurationDisplay)
}

func TestServiceStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.InsertJob(ctx, model.JobRow{JobID: 1, Status: model.StatusRunning})
	require.NoError(t, err)
	_, err = store.InsertJob(ctx, model.JobRow{JobID: 2, Status: model.StatusFinished})
	require.NoError(t, err)
	_, err = store.InsertSubJob(ctx, model.SubJobRow{ParentJobID: 1, Status: model.StatusRunning})
	require.NoError(t, err)
	_, err = store.InsertSubJob(ctx, model.SubJobRow{ParentJobID: 1, Status: model.StatusQueued})
	require.NoError(t, err)

	stats, err := store.ServiceStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Driver)
	assert.Equal(t, int64(2), stats.JobsTotal)
	assert.Equal(t, int64(1), stats.JobsByStatus["Running"])
	assert.Equal(t, int64(1), stats.JobsByStatus["Finished"])
	assert.Equal(t, int64(2), stats.SubJobsTotal)
	assert.Equal(t, int64(1), stats.SubJobsRunning)
	assert.Equal(t, int64(1), stats.SubJobsQueued)
}

func TestDBTimeScan(t *testing.T) {
	var v dbTime
	require.NoError(t, v.Scan("2025-05-01 11:00:00"))
	assert.True(t, v.Valid)
	require.NoError(t, v.Scan(nil))
	assert.False(t, v.Valid)
	assert.Nil(t, v.ptr())
	assert.Error(t, v.Scan("yesterday"))
}
