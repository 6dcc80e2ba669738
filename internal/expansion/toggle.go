package expansion

import "go-laue-run-monitor/internal/model"

// Flip applies a user click on a job's expand control to st and returns the
// materialization to run immediately. Jobs without subjobs have no control; clicking
// them changes nothing and ok is false.
func Flip(st *Store, job *model.JobRow) (action Action, ok bool) {
	if job == nil || job.TotalSubjobs == 0 {
		return Insert, false
	}

	s := st.Get(job.JobID)
	isExpanded := s.Expanded

	if !isExpanded {
		// Re-opening an auto-managed job keeps AutoExpanded so the policy can still
		// collapse it once the run finishes.
		st.SetManuallyCollapsed(job.JobID, false)
	} else if s.AutoExpanded {
		st.SetManuallyCollapsed(job.JobID, true)
		st.SetAutoExpanded(job.JobID, false)
	}

	st.SetExpanded(job.JobID, !isExpanded)

	if isExpanded {
		return Remove, true
	}
	return Insert, true
}
