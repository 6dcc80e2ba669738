package expansion

import "go-laue-run-monitor/internal/model"

// Decide evaluates the auto-expansion policy for one job row on a data refresh. It
// updates st when a transition fires and returns the materialization to schedule.
//
// A job the user expanded (AutoExpanded false) is never auto-collapsed, and a job the
// user collapsed (ManuallyCollapsed true) is never auto-expanded while the flag holds.
func Decide(st *Store, job *model.JobRow) (Action, bool) {
	s := st.Get(job.JobID)

	switch {
	case job.ShouldAutoExpand && !s.Expanded && !s.ManuallyCollapsed:
		st.SetExpanded(job.JobID, true)
		st.SetAutoExpanded(job.JobID, true)
		return Insert, true

	case !job.ShouldAutoExpand && s.Expanded && s.AutoExpanded && !s.ManuallyCollapsed:
		st.SetExpanded(job.JobID, false)
		st.SetAutoExpanded(job.JobID, false)
		return Remove, true
	}
	return Insert, false
}
