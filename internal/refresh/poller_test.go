package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-laue-run-monitor/internal/logging"
	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/session"
)

type fakeSource struct {
	mu    sync.Mutex
	jobs  []model.JobRow
	err   error
	calls int
	limit int
}

func (f *fakeSource) ListJobRows(_ context.Context, limit int) ([]model.JobRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.JobRow(nil), f.jobs...), nil
}

func (f *fakeSource) set(jobs []model.JobRow, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs, f.err = jobs, err
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func job(id int64, status model.Status, subStatuses ...model.Status) model.JobRow {
	j := model.JobRow{JobID: id, Status: status}
	subs := make([]model.SubJobRow, 0, len(subStatuses))
	for i, st := range subStatuses {
		subs = append(subs, model.SubJobRow{SubJobID: id*10 + int64(i+1), ParentJobID: id, Status: st})
	}
	j.SetSubjobs(subs)
	return j
}

func TestRefreshNowFansOut(t *testing.T) {
	src := &fakeSource{jobs: []model.JobRow{job(1, model.StatusRunning, model.StatusRunning, model.StatusQueued)}}
	mgr := session.NewManager(time.Hour, nil)
	s, _ := mgr.Acquire("")
	p := NewPoller(src, mgr, 50, time.Second, logging.Discard())

	var got []Result
	p.OnRefresh(func(r Result) { got = append(got, r) })

	res, err := p.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Jobs)
	assert.Equal(t, 1, res.Sessions)
	assert.Equal(t, 50, src.limit)
	assert.Len(t, s.Grid.Rows(), 3, "auto-expanded job shows its subjobs")
	require.Len(t, got, 1)
	assert.Equal(t, res.Jobs, p.Last().Jobs)
}

func TestRefreshNowFollowsProgress(t *testing.T) {
	src := &fakeSource{jobs: []model.JobRow{job(1, model.StatusRunning, model.StatusRunning)}}
	mgr := session.NewManager(time.Hour, nil)
	s, _ := mgr.Acquire("")
	p := NewPoller(src, mgr, 10, time.Second, logging.Discard())

	_, err := p.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Controller.State(1).AutoExpanded)

	src.set([]model.JobRow{job(1, model.StatusFinished, model.StatusFinished)}, nil)
	_, err = p.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Controller.State(1).Expanded)
	assert.Len(t, s.Grid.Rows(), 1)
}

func TestRefreshNowKeepsRowsOnError(t *testing.T) {
	src := &fakeSource{jobs: []model.JobRow{job(1, model.StatusRunning, model.StatusRunning)}}
	mgr := session.NewManager(time.Hour, nil)
	s, _ := mgr.Acquire("")
	p := NewPoller(src, mgr, 10, time.Second, logging.Discard())
	_, err := p.RefreshNow(context.Background())
	require.NoError(t, err)

	boom := errors.New("database is locked")
	src.set(nil, boom)
	var last Result
	p.OnRefresh(func(r Result) { last = r })
	_, err = p.RefreshNow(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, last.Err, boom)
	assert.Len(t, s.Grid.Rows(), 2)
}

func TestRefreshNowSweepsIdleSessions(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	mgr := session.NewManager(time.Minute, nil, session.WithClock(clock))
	s, _ := mgr.Acquire("")

	p := NewPoller(&fakeSource{}, mgr, 10, time.Second, logging.Discard())
	p.now = clock

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	res, err := p.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, res.Evicted)
	assert.Equal(t, 0, mgr.Len())
}

func TestStartRunsImmediatelyAndOnSchedule(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, session.NewManager(time.Hour, nil), 10, time.Second, logging.Discard())

	require.NoError(t, p.Start(context.Background(), "@every 1s"))
	defer p.Stop()

	assert.Equal(t, 1, src.count())
	assert.Eventually(t, func() bool { return src.count() >= 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	p := NewPoller(&fakeSource{}, session.NewManager(time.Hour, nil), 10, time.Second, logging.Discard())
	assert.Error(t, p.Start(context.Background(), "every now and then"))
}
