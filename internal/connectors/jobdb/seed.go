package jobdb

import (
	"context"
	"fmt"
	"time"

	"go-laue-run-monitor/internal/model"
)

// InsertJob stores job and returns its id. A zero JobID lets the database assign one.
func (s *Store) InsertJob(ctx context.Context, job model.JobRow) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cols := `computer_name, status, priority, submit_time, start_time, finish_time, messages`
	args := []any{job.ComputerName, int(job.Status), job.Priority,
		timeArg(job.SubmitTime), timeArg(job.StartTime), timeArg(job.FinishTime), job.Messages}
	marks := `?, ?, ?, ?, ?, ?, ?`
	if job.JobID != 0 {
		cols = "job_id, " + cols
		marks = "?, " + marks
		args = append([]any{job.JobID}, args...)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO job (`+cols+`) VALUES (`+marks+`);`, args...)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	if job.JobID != 0 {
		return job.JobID, nil
	}
	return res.LastInsertId()
}

// InsertSubJob stores sj under sj.ParentJobID and returns its id.
func (s *Store) InsertSubJob(ctx context.Context, sj model.SubJobRow) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cols := `job_id, computer_name, status, priority, start_time, finish_time, messages`
	args := []any{sj.ParentJobID, sj.ComputerName, int(sj.Status), sj.Priority,
		timeArg(sj.StartTime), timeArg(sj.FinishTime), sj.Messages}
	marks := `?, ?, ?, ?, ?, ?, ?`
	if sj.SubJobID != 0 {
		cols = "subjob_id, " + cols
		marks = "?, " + marks
		args = append([]any{sj.SubJobID}, args...)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO subjob (`+cols+`) VALUES (`+marks+`);`, args...)
	if err != nil {
		return 0, fmt.Errorf("insert subjob: %w", err)
	}
	if sj.SubJobID != 0 {
		return sj.SubJobID, nil
	}
	return res.LastInsertId()
}

// RefKind names a table of records produced by jobs.
type RefKind string

const (
	RefCalib     RefKind = "calib"
	RefRecon     RefKind = "recon"
	RefWireRecon RefKind = "wirerecon"
	RefPeakIndex RefKind = "peakindex"
)

// InsertReference links a calibration, reconstruction or indexing record to jobID.
func (s *Store) InsertReference(ctx context.Context, kind RefKind, jobID, scanNumber int64, author, notes string) (int64, error) {
	switch kind {
	case RefCalib, RefRecon, RefWireRecon, RefPeakIndex:
	default:
		return 0, fmt.Errorf("unknown reference kind %q", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+string(kind)+` (scanNumber, job_id, author, notes) VALUES (?, ?, ?, ?);`,
		scanNumber, jobID, author, notes)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", kind, err)
	}
	return res.LastInsertId()
}

// SetSubJobStatus moves a subjob to status, stamping the start time when it begins
// running and the finish time when it reaches a terminal state.
func (s *Store) SetSubJobStatus(ctx context.Context, subjobID int64, status model.Status, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	stamp := timeArg(&at)
	var err error
	switch {
	case status == model.StatusRunning:
		_, err = s.db.ExecContext(ctx,
			`UPDATE subjob SET status = ?, start_time = COALESCE(start_time, ?), finish_time = NULL WHERE subjob_id = ?;`,
			int(status), stamp, subjobID)
	case status.InFlight():
		_, err = s.db.ExecContext(ctx,
			`UPDATE subjob SET status = ?, finish_time = NULL WHERE subjob_id = ?;`, int(status), subjobID)
	default:
		_, err = s.db.ExecContext(ctx,
			`UPDATE subjob SET status = ?, finish_time = ? WHERE subjob_id = ?;`, int(status), stamp, subjobID)
	}
	if err != nil {
		return fmt.Errorf("update subjob %d: %w", subjobID, err)
	}
	return nil
}
