package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func TestProgressNoSubjobs(t *testing.T) {
	view := Progress(&model.JobRow{JobID: 1})
	assert.True(t, view.Empty)
	assert.Equal(t, NoSubjobsLabel, view.Label)
	assert.Empty(t, view.Segments)
}

func TestProgressSegments(t *testing.T) {
	job := &model.JobRow{TotalSubjobs: 10, CompletedSubjobs: 5, FailedSubjobs: 0, RunningSubjobs: 2, QueuedSubjobs: 1}
	view := Progress(job)

	assert.Equal(t, "5/10 completed", view.Label)
	require.Len(t, view.Segments, 3, "zero-count failed segment is omitted")
	assert.Equal(t, "completed", view.Segments[0].Kind)
	assert.InDelta(t, 50.0, view.Segments[0].WidthPct, 1e-9)
	assert.Equal(t, "running", view.Segments[1].Kind)
	assert.InDelta(t, 20.0, view.Segments[1].WidthPct, 1e-9)
	assert.Equal(t, "2 running", view.Segments[1].Title)
	assert.Equal(t, "queued", view.Segments[2].Kind)
	assert.InDelta(t, 10.0, view.Segments[2].WidthPct, 1e-9)
}

func TestProgressFailsSoft(t *testing.T) {
	assert.Equal(t, ProgressView{}, Progress(nil))
	view := Progress(&model.JobRow{TotalSubjobs: 2, CompletedSubjobs: -3})
	assert.Equal(t, "0/2 completed", view.Label)
	assert.Empty(t, view.Segments)
}

func TestStatusBadge(t *testing.T) {
	assert.Equal(t, Badge{Text: "Running", Color: "info"}, StatusBadge(model.StatusRunning))
	assert.Equal(t, Badge{Text: "Failed", Color: "danger"}, StatusBadge(model.StatusFailed))
	assert.Equal(t, Badge{Text: "Unknown (7)", Color: "secondary"}, StatusBadge(model.Status(7)))
	assert.Equal(t, Badge{}, RowStatus(nil))
}

func TestJobRefsOrderAndLinks(t *testing.T) {
	job := &model.JobRow{
		JobID:       3,
		CalibID:     int64Ptr(4),
		WireReconID: int64Ptr(8),
		PeakIndexID: int64Ptr(9),
	}
	refs := JobRefs(job)
	require.Len(t, refs, 3)
	assert.Equal(t, Ref{Table: Link{Text: "Calib"}, ID: Link{Text: "4"}}, refs[0])
	assert.Equal(t, "/wire_reconstruction?wirerecon_id=8", refs[1].ID.Href)
	assert.Equal(t, "/wire-reconstructions", refs[1].Table.Href)
	assert.Equal(t, "/peakindexing?peakindex_id=9", refs[2].ID.Href)
	assert.Nil(t, JobRefs(nil))
}

func TestIDLink(t *testing.T) {
	assert.Equal(t, Link{Text: "12", Href: "/job?job_id=12"}, IDLink(&model.JobRow{JobID: 12}))
	assert.Equal(t, Link{Text: "5"}, IDLink(&model.SubJobRow{SubJobID: 5, ParentJobID: 12}))
	assert.Equal(t, Link{}, IDLink(nil))
}

func TestDateAndDuration(t *testing.T) {
	ts := time.Date(2025, 3, 4, 17, 5, 9, 0, time.UTC)
	assert.Equal(t, "2025-03-04 17:05:09", Date(&ts))
	assert.Equal(t, "", Date(nil))

	assert.Equal(t, "1h 2m 3s", Duration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "0h 0m 0s", Duration(-time.Minute))

	start := ts
	finish := ts.Add(90 * time.Second)
	assert.Equal(t, "0h 1m 30s", Elapsed(&start, &finish, ts))
	assert.Equal(t, "0h 0m 45s (running)", Elapsed(&start, nil, ts.Add(45*time.Second)))
	assert.Equal(t, "", Elapsed(nil, &finish, ts))
}

func TestExpandIndicator(t *testing.T) {
	job := &model.JobRow{JobID: 1, TotalSubjobs: 2}
	assert.Equal(t, "▶", ExpandIndicator(job, expansion.State{}))
	assert.Equal(t, "▼", ExpandIndicator(job, expansion.State{Expanded: true}))
	assert.Equal(t, "", ExpandIndicator(&model.JobRow{JobID: 2}, expansion.State{Expanded: true}))
	assert.Equal(t, "", ExpandIndicator(&model.SubJobRow{SubJobID: 3}, expansion.State{}))
}

func TestViewRendersFrame(t *testing.T) {
	job := model.JobRow{JobID: 1, Status: model.StatusRunning}
	job.SetSubjobs([]model.SubJobRow{{SubJobID: 10, ParentJobID: 1, Status: model.StatusRunning}})
	frame := expansion.Frame{
		Rows:   []model.Row{&job, &job.Subjobs[0], nil},
		States: map[int64]expansion.State{1: {Expanded: true, AutoExpanded: true}},
	}

	views := View(frame)
	require.Len(t, views, 2)
	assert.Equal(t, model.RowTypeJob, views[0].RowType)
	assert.Equal(t, "▼", views[0].Expand)
	assert.True(t, views[0].Expandable)
	require.NotNil(t, views[0].Progress)
	assert.Equal(t, "0/1 completed", views[0].Progress.Label)
	assert.Equal(t, model.RowTypeSubJob, views[1].RowType)
	assert.Nil(t, views[1].Progress)
	assert.Equal(t, "", views[1].Expand)
}

func TestColumnsLayout(t *testing.T) {
	cols := Columns()
	require.GreaterOrEqual(t, len(cols), 3)
	assert.Equal(t, expansion.ExpandColumn, cols[0].Field)
	assert.Equal(t, "Job Reference", cols[1].HeaderName)
	assert.Equal(t, "Actions", cols[len(cols)-1].HeaderName)

	assert.Equal(t, "SubJobs Progress", HeaderName("total_subjobs"))
	assert.Equal(t, "Computer Name", HeaderName("computer_name"))
	assert.Equal(t, "Date", HeaderName("submit_time"))
}
