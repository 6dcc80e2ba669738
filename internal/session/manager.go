// Package session keeps one run-monitor grid per open page. Each session owns its own
// grid and expansion controller, so pages never share expansion state.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/grid"
	"go-laue-run-monitor/internal/model"
)

// Session is one page's grid.
type Session struct {
	ID         string
	Grid       *grid.Memory
	Controller *expansion.Controller
	Created    time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the session was last acquired.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Manager creates, looks up and evicts sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	latest   []model.JobRow
	ttl      time.Duration
	now      func() time.Time
	observe  func(string, expansion.Event)
	logger   arbor.ILogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver receives the expansion events of every session, tagged with its id.
func WithObserver(fn func(sessionID string, ev expansion.Event)) Option {
	return func(m *Manager) { m.observe = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(ttl time.Duration, logger arbor.ILogger, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the session with id, creating a fresh one when id is empty, malformed
// or unknown. The bool reports whether a session was created. New sessions start from the
// latest broadcast job list.
func (m *Manager) Acquire(id string) (*Session, bool) {
	now := m.now()
	id = strings.TrimSpace(id)

	if id != "" {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			s.touch(now)
			return s, false
		}
	}

	s := m.newSession(now)

	m.mu.Lock()
	m.sessions[s.ID] = s
	latest := m.latest
	m.mu.Unlock()

	if latest != nil {
		s.Controller.Refresh(cloneJobs(latest))
	}
	if m.logger != nil {
		m.logger.Debug().Str("session", s.ID).Int("jobs", len(latest)).Msg("Session created")
	}
	return s, true
}

// Get returns an existing session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[strings.TrimSpace(id)]
	return s, ok
}

func (m *Manager) newSession(now time.Time) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Grid:     grid.NewMemory(),
		Created:  now,
		lastSeen: now,
	}
	var opts []expansion.Option
	if m.observe != nil {
		id := s.ID
		observe := m.observe
		opts = append(opts, expansion.WithObserver(func(ev expansion.Event) { observe(id, ev) }))
	}
	s.Controller = expansion.NewController(s.Grid, opts...)
	return s
}

// Broadcast refreshes every session with jobs and remembers them for sessions created
// later. Each session receives its own copy of the job list.
func (m *Manager) Broadcast(jobs []model.JobRow) int {
	m.mu.Lock()
	m.latest = cloneJobs(jobs)
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.Unlock()

	for _, s := range targets {
		s.Controller.Refresh(cloneJobs(jobs))
	}
	return len(targets)
}

// Latest returns a copy of the most recent broadcast job list.
func (m *Manager) Latest() []model.JobRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil
	}
	return cloneJobs(m.latest)
}

// Sweep drops sessions idle longer than the TTL and returns their ids. Their expansion
// state goes with them.
func (m *Manager) Sweep(now time.Time) []string {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	if len(evicted) > 0 && m.logger != nil {
		m.logger.Info().Int("evicted", len(evicted)).Int("remaining", len(m.sessions)).Msg("Idle sessions evicted")
	}
	return evicted
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs lists live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cloneJobs copies the job slice so each grid holds pointers into its own array. Subjob
// slices are shared; nothing writes to them after a listing is built.
func cloneJobs(jobs []model.JobRow) []model.JobRow {
	out := make([]model.JobRow, len(jobs))
	copy(out, jobs)
	return out
}
