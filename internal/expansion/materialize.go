package expansion

import "go-laue-run-monitor/internal/model"

// Action selects what Materialize does with a job's subjob block.
type Action int

const (
	Insert Action = iota
	Remove
)

func (a Action) String() string {
	if a == Remove {
		return "remove"
	}
	return "insert"
}

// Materialize applies action for jobID to rows and returns the new flattened list.
// The input slice is never modified.
func Materialize(rows []model.Row, jobID int64, action Action) []model.Row {
	if action == Remove {
		return RemoveSubjobs(rows, jobID)
	}
	return InsertSubjobs(rows, jobID)
}

// InsertSubjobs splices the job's subjobs directly after its row. A missing job or an
// empty subjob list leaves rows unchanged. Any block already present for the job is
// dropped first, so repeated inserts never duplicate it.
func InsertSubjobs(rows []model.Row, jobID int64) []model.Row {
	if _, job := model.FindJob(rows, jobID); job == nil || len(job.Subjobs) == 0 {
		return rows
	}

	base := RemoveSubjobs(rows, jobID)
	i, job := model.FindJob(base, jobID)

	out := make([]model.Row, 0, len(base)+len(job.Subjobs))
	out = append(out, base[:i+1]...)
	for k := range job.Subjobs {
		out = append(out, &job.Subjobs[k])
	}
	return append(out, base[i+1:]...)
}

// RemoveSubjobs keeps every job row and every subjob row that belongs to another job.
func RemoveSubjobs(rows []model.Row, jobID int64) []model.Row {
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		if sj, ok := r.(*model.SubJobRow); ok && sj.ParentJobID == jobID {
			continue
		}
		out = append(out, r)
	}
	return out
}
