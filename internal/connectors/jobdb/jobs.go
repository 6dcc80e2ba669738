package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/render"
)

const jobColumns = `
  j.job_id,
  COALESCE(j.computer_name, ''),
  j.status,
  COALESCE(j.priority, 0),
  j.submit_time,
  j.start_time,
  j.finish_time,
  COALESCE(j.messages, ''),
  c.calib_id,
  r.recon_id,
  w.wirerecon_id,
  p.peakindex_id
FROM job j
LEFT JOIN calib c ON c.job_id = j.job_id
LEFT JOIN recon r ON r.job_id = j.job_id
LEFT JOIN wirerecon w ON w.job_id = j.job_id
LEFT JOIN peakindex p ON p.job_id = j.job_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(sc rowScanner) (model.JobRow, error) {
	var (
		job                    model.JobRow
		status                 int
		submit, start, finish  dbTime
		calib, recon, wire, pk sql.NullInt64
	)
	if err := sc.Scan(
		&job.JobID, &job.ComputerName, &status, &job.Priority,
		&submit, &start, &finish, &job.Messages,
		&calib, &recon, &wire, &pk,
	); err != nil {
		return model.JobRow{}, err
	}
	job.Status = model.Status(status)
	job.SubmitTime = submit.ptr()
	job.StartTime = start.ptr()
	job.FinishTime = finish.ptr()
	job.CalibID = nullInt64Ptr(calib)
	job.ReconID = nullInt64Ptr(recon)
	job.WireReconID = nullInt64Ptr(wire)
	job.PeakIndexID = nullInt64Ptr(pk)
	return job, nil
}

// ListJobRows returns up to limit jobs, newest first, each carrying its subjobs ordered by
// subjob id together with the derived counters. Durations are computed against a single
// clock reading so rows of one listing agree with each other.
func (s *Store) ListJobRows(ctx context.Context, limit int) ([]model.JobRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = math.MaxInt32
	}

	rows, err := s.db.QueryContext(ctx, `SELECT`+jobColumns+`
ORDER BY j.job_id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]model.JobRow, 0, 64)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return jobs, nil
	}

	ids := make([]int64, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].JobID
	}
	byJob, err := s.listSubJobs(ctx, ids, s.now())
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].SetSubjobs(byJob[jobs[i].JobID])
	}
	return jobs, nil
}

func (s *Store) listSubJobs(ctx context.Context, jobIDs []int64, now time.Time) (map[int64][]model.SubJobRow, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jobIDs)), ",")
	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT subjob_id, job_id, COALESCE(computer_name, ''), status, COALESCE(priority, 0), start_time, finish_time, COALESCE(messages, '')
FROM subjob
WHERE job_id IN (`+placeholders+`)
ORDER BY subjob_id ASC;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.SubJobRow, len(jobIDs))
	for rows.Next() {
		var (
			sj            model.SubJobRow
			status        int
			start, finish dbTime
		)
		if err := rows.Scan(&sj.SubJobID, &sj.ParentJobID, &sj.ComputerName, &status, &sj.Priority, &start, &finish, &sj.Messages); err != nil {
			return nil, err
		}
		sj.Status = model.Status(status)
		sj.StartTime = start.ptr()
		sj.FinishTime = finish.ptr()
		sj.DurationDisplay = render.Elapsed(sj.StartTime, sj.FinishTime, now)
		out[sj.ParentJobID] = append(out[sj.ParentJobID], sj)
	}
	return out, rows.Err()
}

var relatedTables = []struct {
	kind  string
	table string
	idCol string
}{
	{"Calibration", "calib", "calib_id"},
	{"Reconstruction", "recon", "recon_id"},
	{"Wire Reconstruction", "wirerecon", "wirerecon_id"},
	{"Peak Index", "peakindex", "peakindex_id"},
}

// GetJob returns one job with its subjobs and the records it produced.
func (s *Store) GetJob(ctx context.Context, jobID int64) (*model.JobDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT`+jobColumns+`
WHERE j.job_id = ?;`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	byJob, err := s.listSubJobs(ctx, []int64{jobID}, now)
	if err != nil {
		return nil, err
	}
	job.SetSubjobs(byJob[jobID])

	detail := &model.JobDetail{
		Job:             job,
		DurationDisplay: jobDuration(job, now),
		Related:         []model.RelatedEntity{},
		Subjobs:         job.Subjobs,
		Cancellable:     job.Status.InFlight(),
	}
	if detail.Subjobs == nil {
		detail.Subjobs = []model.SubJobRow{}
	}

	for _, rt := range relatedTables {
		var (
			id            int64
			scan          sql.NullInt64
			author, notes sql.NullString
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT `+rt.idCol+`, scanNumber, author, notes FROM `+rt.table+` WHERE job_id = ?;`, jobID,
		).Scan(&id, &scan, &author, &notes)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		detail.Related = append(detail.Related, model.RelatedEntity{Kind: rt.kind, ID: id, ScanNumber: nullInt64Ptr(scan)})
		if detail.Author == "" && author.Valid {
			detail.Author = author.String
		}
		if detail.Notes == "" && notes.Valid {
			detail.Notes = notes.String
		}
	}

	return detail, nil
}

// jobDuration is the detail-page duration: finished jobs show start to finish, running
// jobs show time so far, anything else a placeholder.
func jobDuration(job model.JobRow, now time.Time) string {
	switch {
	case job.StartTime != nil && job.FinishTime != nil:
		return render.Duration(job.FinishTime.Sub(*job.StartTime))
	case job.StartTime != nil && job.Status == model.StatusRunning:
		return render.Elapsed(job.StartTime, nil, now)
	}
	return render.Placeholder
}
