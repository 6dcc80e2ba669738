package expansion

import (
	"sync"

	"go-laue-run-monitor/internal/model"
)

// ExpandColumn is the grid column holding the expand/collapse indicator.
const ExpandColumn = "expand"

// Grid is the row store of a data-grid widget.
type Grid interface {
	Rows() []model.Row
	SetRows(rows []model.Row)
	RefreshColumns(columns ...string)
}

// EventKind labels what changed a job's expansion.
type EventKind string

const (
	EventAutoExpand   EventKind = "auto_expand"
	EventAutoCollapse EventKind = "auto_collapse"
	EventRestore      EventKind = "restore"
	EventToggle       EventKind = "toggle"
)

// Event is reported to the observer after each materialization.
type Event struct {
	Kind   EventKind
	JobID  int64
	Action Action
	Rows   int
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive expansion events. fn runs with the controller
// lock held and must not call back into the controller.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) {
		c.observe = fn
	}
}

// WithStore lets the caller supply the state store, mainly for tests.
func WithStore(st *Store) Option {
	return func(c *Controller) {
		if st != nil {
			c.store = st
		}
	}
}

type scheduled struct {
	jobID  int64
	action Action
	kind   EventKind
}

// Controller owns the expansion state of one grid and serializes the refresh and click
// entry points, so each runs to completion before the next starts.
type Controller struct {
	mu      sync.Mutex
	grid    Grid
	store   *Store
	pending []scheduled
	observe func(Event)
}

func NewController(grid Grid, opts ...Option) *Controller {
	c := &Controller{grid: grid, store: NewStore()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh replaces the grid rows with a full set of job rows and reconciles expansion.
//
// Job rows are set first. Policy transitions, and the subjob blocks of jobs that remain
// expanded, are queued and materialized on the following dispatch turn against the rows
// the grid now holds. Rows handed to the grid must not be mutated afterwards.
func (c *Controller) Refresh(jobs []model.JobRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]model.Row, 0, len(jobs))
	for i := range jobs {
		rows = append(rows, &jobs[i])
	}
	c.grid.SetRows(rows)

	for i := range jobs {
		job := &jobs[i]
		if action, ok := Decide(c.store, job); ok {
			kind := EventAutoExpand
			if action == Remove {
				kind = EventAutoCollapse
			}
			c.pending = append(c.pending, scheduled{jobID: job.JobID, action: action, kind: kind})
			continue
		}
		if c.store.Get(job.JobID).Expanded {
			c.pending = append(c.pending, scheduled{jobID: job.JobID, action: Insert, kind: EventRestore})
		}
	}

	c.drain()
}

// Toggle handles a click on jobID's expand control. It reports whether anything changed;
// unknown jobs and jobs without subjobs are ignored.
func (c *Controller) Toggle(jobID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, job := model.FindJob(c.grid.Rows(), jobID)
	if job == nil {
		return false
	}
	action, ok := Flip(c.store, job)
	if !ok {
		return false
	}
	c.apply(scheduled{jobID: jobID, action: action, kind: EventToggle})
	return true
}

// State returns the expansion state recorded for jobID.
func (c *Controller) State(jobID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(jobID)
}

// Snapshot returns a copy of every recorded state.
func (c *Controller) Snapshot() map[int64]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Frame is a consistent view of the grid rows and the expansion state.
type Frame struct {
	Rows   []model.Row
	States map[int64]State
}

// Frame returns rows and states captured under one lock.
func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Frame{Rows: c.grid.Rows(), States: c.store.Snapshot()}
}

func (c *Controller) drain() {
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.apply(next)
	}
	c.pending = nil
}

func (c *Controller) apply(op scheduled) {
	rows := Materialize(c.grid.Rows(), op.jobID, op.action)
	c.grid.SetRows(rows)
	c.grid.RefreshColumns(ExpandColumn)
	if c.observe != nil {
		c.observe(Event{Kind: op.kind, JobID: op.jobID, Action: op.action, Rows: len(rows)})
	}
}
