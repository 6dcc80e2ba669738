package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSubjobsCountsBuckets(t *testing.T) {
	job := &JobRow{JobID: 7, Status: StatusRunning}
	job.SetSubjobs([]SubJobRow{
		{SubJobID: 1, ParentJobID: 7, Status: StatusFinished},
		{SubJobID: 2, ParentJobID: 7, Status: StatusFinished},
		{SubJobID: 3, ParentJobID: 7, Status: StatusFailed},
		{SubJobID: 4, ParentJobID: 7, Status: StatusRunning},
		{SubJobID: 5, ParentJobID: 7, Status: StatusQueued},
		{SubJobID: 6, ParentJobID: 7, Status: StatusCancelled},
	})

	assert.Equal(t, 6, job.TotalSubjobs)
	assert.Equal(t, 2, job.CompletedSubjobs)
	assert.Equal(t, 1, job.FailedSubjobs)
	assert.Equal(t, 1, job.RunningSubjobs)
	assert.Equal(t, 1, job.QueuedSubjobs)
	assert.LessOrEqual(t, job.CompletedSubjobs+job.FailedSubjobs+job.RunningSubjobs+job.QueuedSubjobs, job.TotalSubjobs)
	assert.True(t, job.ShouldAutoExpand)
}

func TestShouldAutoExpand(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		running int
		queued  int
		want    bool
	}{
		{"running subjobs", StatusRunning, 1, 0, true},
		{"queued under running job", StatusRunning, 0, 3, true},
		{"queued under queued job", StatusQueued, 0, 3, false},
		{"finished job", StatusFinished, 0, 0, false},
		{"running subjob of failed job", StatusFailed, 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAutoExpand(tt.status, tt.running, tt.queued))
		})
	}
}

func TestRowJSONCarriesDiscriminator(t *testing.T) {
	rows := []Row{
		&JobRow{JobID: 1, Subjobs: []SubJobRow{{SubJobID: 10, ParentJobID: 1}}},
		&SubJobRow{SubJobID: 10, ParentJobID: 1},
	}
	raw, err := json.Marshal(rows)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "job", decoded[0]["row_type"])
	assert.Equal(t, "subjob", decoded[1]["row_type"])
	assert.NotContains(t, decoded[0], "Subjobs")
	assert.EqualValues(t, 1, decoded[1]["parent_job_id"])
}

func TestFindJob(t *testing.T) {
	rows := []Row{
		&JobRow{JobID: 3},
		&SubJobRow{SubJobID: 30, ParentJobID: 3},
		&JobRow{JobID: 4},
	}
	i, job := FindJob(rows, 4)
	assert.Equal(t, 2, i)
	require.NotNil(t, job)
	assert.Equal(t, int64(4), job.JobID)

	i, job = FindJob(rows, 30)
	assert.Equal(t, -1, i)
	assert.Nil(t, job)

	assert.Len(t, JobRows(rows), 2)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Running", StatusRunning.String())
	assert.Equal(t, "Unknown (9)", Status(9).String())
	code, ok := ParseStatus("Failed")
	assert.True(t, ok)
	assert.Equal(t, StatusFailed, code)
}
