// Package expansion keeps the flattened job/subjob row list of a run-monitor grid
// consistent across data refreshes, the follow-the-running-job policy and user clicks.
package expansion

// State is the per-job expansion record.
//
// AutoExpanded implies Expanded. ManuallyCollapsed blocks the policy from re-expanding
// the job until the user expands it again.
type State struct {
	Expanded          bool `json:"expanded"`
	AutoExpanded      bool `json:"auto_expanded"`
	ManuallyCollapsed bool `json:"manually_collapsed"`
}

// Store records expansion state per job id. The zero value is not usable; use NewStore.
//
// A Store is not safe for concurrent writers. The Controller serializes all access.
type Store struct {
	states map[int64]State
}

func NewStore() *Store {
	return &Store{states: make(map[int64]State)}
}

// Get returns the state for jobID, or all-false defaults if the job was never touched.
func (s *Store) Get(jobID int64) State {
	return s.states[jobID]
}

// Has reports whether an entry exists for jobID.
func (s *Store) Has(jobID int64) bool {
	_, ok := s.states[jobID]
	return ok
}

func (s *Store) SetExpanded(jobID int64, v bool) {
	st := s.states[jobID]
	st.Expanded = v
	s.states[jobID] = st
}

func (s *Store) SetAutoExpanded(jobID int64, v bool) {
	st := s.states[jobID]
	st.AutoExpanded = v
	s.states[jobID] = st
}

func (s *Store) SetManuallyCollapsed(jobID int64, v bool) {
	st := s.states[jobID]
	st.ManuallyCollapsed = v
	s.states[jobID] = st
}

// Len returns the number of recorded entries, including orphans of vanished jobs.
func (s *Store) Len() int {
	return len(s.states)
}

// Snapshot copies the current entries.
func (s *Store) Snapshot() map[int64]State {
	out := make(map[int64]State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}
