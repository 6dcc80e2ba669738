package model

import (
	"encoding/json"
	"time"
)

// RowType discriminates the two kinds of grid rows.
type RowType string

const (
	RowTypeJob    RowType = "job"
	RowTypeSubJob RowType = "subjob"
)

// Row is one entry of the flattened grid row list. It is either a *JobRow or a *SubJobRow.
type Row interface {
	RowType() RowType
	isRow()
}

// JobRow is one aggregate compute job.
type JobRow struct {
	JobID        int64      `json:"job_id"`
	ComputerName string     `json:"computer_name"`
	Status       Status     `json:"status"`
	Priority     int        `json:"priority"`
	SubmitTime   *time.Time `json:"submit_time"`
	StartTime    *time.Time `json:"start_time"`
	FinishTime   *time.Time `json:"finish_time"`
	Messages     string     `json:"messages,omitempty"`

	CalibID     *int64 `json:"calib_id"`
	ReconID     *int64 `json:"recon_id"`
	WireReconID *int64 `json:"wirerecon_id"`
	PeakIndexID *int64 `json:"peakindex_id"`

	TotalSubjobs     int `json:"total_subjobs"`
	CompletedSubjobs int `json:"completed_subjobs"`
	FailedSubjobs    int `json:"failed_subjobs"`
	RunningSubjobs   int `json:"running_subjobs"`
	QueuedSubjobs    int `json:"queued_subjobs"`

	ShouldAutoExpand bool `json:"should_auto_expand"`

	// Subjobs is spliced into the flattened view when the job is expanded.
	Subjobs []SubJobRow `json:"-"`
}

// SubJobRow is one unit of work under a job.
type SubJobRow struct {
	SubJobID        int64      `json:"subjob_id"`
	ParentJobID     int64      `json:"parent_job_id"`
	ComputerName    string     `json:"computer_name"`
	Status          Status     `json:"status"`
	Priority        int        `json:"priority"`
	StartTime       *time.Time `json:"start_time"`
	FinishTime      *time.Time `json:"finish_time"`
	Messages        string     `json:"messages,omitempty"`
	DurationDisplay string     `json:"duration_display,omitempty"`
}

func (*JobRow) RowType() RowType    { return RowTypeJob }
func (*SubJobRow) RowType() RowType { return RowTypeSubJob }

func (*JobRow) isRow()    {}
func (*SubJobRow) isRow() {}

// MarshalJSON adds the row_type discriminator.
func (j JobRow) MarshalJSON() ([]byte, error) {
	type plain JobRow
	return json.Marshal(struct {
		RowType RowType `json:"row_type"`
		plain
	}{RowTypeJob, plain(j)})
}

// MarshalJSON adds the row_type discriminator.
func (s SubJobRow) MarshalJSON() ([]byte, error) {
	type plain SubJobRow
	return json.Marshal(struct {
		RowType RowType `json:"row_type"`
		plain
	}{RowTypeSubJob, plain(s)})
}

// SetSubjobs replaces the subjob list and recomputes the aggregate counters and the
// auto-expand signal from it.
func (j *JobRow) SetSubjobs(subjobs []SubJobRow) {
	j.Subjobs = subjobs
	j.TotalSubjobs = len(subjobs)
	j.CompletedSubjobs, j.FailedSubjobs, j.RunningSubjobs, j.QueuedSubjobs = 0, 0, 0, 0
	for _, sj := range subjobs {
		switch sj.Status {
		case StatusFinished:
			j.CompletedSubjobs++
		case StatusFailed:
			j.FailedSubjobs++
		case StatusRunning:
			j.RunningSubjobs++
		case StatusQueued:
			j.QueuedSubjobs++
		}
	}
	j.ShouldAutoExpand = ShouldAutoExpand(j.Status, j.RunningSubjobs, j.QueuedSubjobs)
}

// ShouldAutoExpand reports whether a job has in-flight subjobs worth following: any
// running subjob, or queued subjobs of a job that is itself running.
func ShouldAutoExpand(jobStatus Status, running, queued int) bool {
	if running > 0 {
		return true
	}
	return jobStatus == StatusRunning && queued > 0
}

// JobRows returns the job rows of a flattened list in order.
func JobRows(rows []Row) []*JobRow {
	out := make([]*JobRow, 0, len(rows))
	for _, r := range rows {
		if job, ok := r.(*JobRow); ok && job != nil {
			out = append(out, job)
		}
	}
	return out
}

// FindJob returns the position and row of jobID, or -1 when it is not present.
func FindJob(rows []Row, jobID int64) (int, *JobRow) {
	for i, r := range rows {
		if job, ok := r.(*JobRow); ok && job != nil && job.JobID == jobID {
			return i, job
		}
	}
	return -1, nil
}

// JobDetail is the single-job view with related entities.
type JobDetail struct {
	Job             JobRow          `json:"job"`
	Author          string          `json:"author,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	DurationDisplay string          `json:"duration_display"`
	Related         []RelatedEntity `json:"related"`
	Subjobs         []SubJobRow     `json:"subjobs"`
	Cancellable     bool            `json:"cancellable"`
}

// RelatedEntity is a calibration, reconstruction or indexing record produced by a job.
type RelatedEntity struct {
	Kind       string `json:"kind"`
	ID         int64  `json:"id"`
	ScanNumber *int64 `json:"scan_number,omitempty"`
}
