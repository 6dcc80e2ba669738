// Package tui is a terminal run monitor: the same job/subjob grid as the web page,
// drawn as a table and refreshed on a timer.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ternarybob/arbor"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/grid"
	"go-laue-run-monitor/internal/model"
)

const (
	defaultInterval = 5 * time.Second
	defaultTimeout  = 10 * time.Second
	chromeHeight    = 7
)

// JobSource lists jobs with their subjobs, newest first.
type JobSource interface {
	ListJobRows(ctx context.Context, limit int) ([]model.JobRow, error)
}

type tickMsg time.Time

type jobsMsg struct {
	jobs []model.JobRow
	at   time.Time
}

type errMsg struct{ err error }

// rowKey identifies a table line; SubJobID is zero on job lines.
type rowKey struct {
	JobID    int64
	SubJobID int64
}

// Model is the bubbletea model of the terminal monitor.
type Model struct {
	source   JobSource
	limit    int
	interval time.Duration
	timeout  time.Duration
	logger   arbor.ILogger

	grid       *grid.Memory
	controller *expansion.Controller

	table table.Model
	help  help.Model
	keys  keyMap

	frame expansion.Frame
	lines []rowKey

	loading     bool
	lastRefresh time.Time
	err         error
	width       int
	height      int
}

// Option configures a Model.
type Option func(*Model)

// WithInterval sets the refresh period.
func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithQueryTimeout bounds each listing.
func WithQueryTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger receives expansion events and refresh failures.
func WithLogger(logger arbor.ILogger) Option {
	return func(m *Model) { m.logger = logger }
}

func New(source JobSource, limit int, opts ...Option) Model {
	m := Model{
		source:   source,
		limit:    limit,
		interval: defaultInterval,
		timeout:  defaultTimeout,
		grid:     grid.NewMemory(),
		help:     help.New(),
		keys:     keys,
		width:    120,
		height:   30,
	}
	for _, opt := range opts {
		opt(&m)
	}

	var ctrlOpts []expansion.Option
	if m.logger != nil {
		logger := m.logger
		ctrlOpts = append(ctrlOpts, expansion.WithObserver(func(ev expansion.Event) {
			logger.Debug().
				Str("kind", string(ev.Kind)).
				Int64("job_id", ev.JobID).
				Str("action", ev.Action.String()).
				Int("rows", ev.Rows).
				Msg("Expansion changed")
		}))
	}
	m.controller = expansion.NewController(m.grid, ctrlOpts...)

	t := table.New(
		table.WithColumns(tableColumns()),
		table.WithFocused(true),
		table.WithHeight(m.height-chromeHeight),
	)
	s := table.DefaultStyles()
	s.Header = tableHeaderStyle
	s.Selected = tableSelectedStyle
	t.SetStyles(s)
	m.table = t
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchJobsCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if h := m.height - chromeHeight; h > 3 {
			m.table.SetHeight(h)
		}
		m.table.SetWidth(m.width)
		m.help.Width = m.width
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{m.tickCmd()}
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.fetchJobsCmd())
		}
		return m, tea.Batch(cmds...)

	case jobsMsg:
		m.loading = false
		m.err = nil
		m.lastRefresh = msg.at
		m.controller.Refresh(msg.jobs)
		m.sync()
		return m, nil

	case errMsg:
		m.loading = false
		m.err = msg.err
		if m.logger != nil {
			m.logger.Warn().Err(msg.err).Msg("Job refresh failed; keeping previous rows")
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.fetchJobsCmd()
		case key.Matches(msg, m.keys.Toggle):
			m.toggleSelected()
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// toggleSelected expands or collapses the job under the cursor. On a subjob line it
// acts on the parent and moves the cursor onto it.
func (m *Model) toggleSelected() {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.lines) {
		return
	}
	jobID := m.lines[idx].JobID
	if !m.controller.Toggle(jobID) {
		return
	}
	m.syncTo(rowKey{JobID: jobID})
}

// sync redraws the table from the controller, keeping the cursor on the same line
// when it still exists.
func (m *Model) sync() {
	var keep rowKey
	if idx := m.table.Cursor(); idx >= 0 && idx < len(m.lines) {
		keep = m.lines[idx]
	}
	m.syncTo(keep)
}

func (m *Model) syncTo(keep rowKey) {
	m.frame = m.controller.Frame()

	rows := make([]table.Row, 0, len(m.frame.Rows))
	lines := make([]rowKey, 0, len(m.frame.Rows))
	for _, row := range m.frame.Rows {
		switch r := row.(type) {
		case *model.JobRow:
			lines = append(lines, rowKey{JobID: r.JobID})
		case *model.SubJobRow:
			lines = append(lines, rowKey{JobID: r.ParentJobID, SubJobID: r.SubJobID})
		default:
			continue
		}
		rows = append(rows, tableRow(row, m.frame.States))
	}
	m.lines = lines
	m.table.SetRows(rows)

	cursor := 0
	for i, k := range lines {
		if k == keep {
			cursor = i
			break
		}
	}
	if len(lines) > 0 {
		m.table.SetCursor(cursor)
	}
}

// Rows returns the rows currently drawn.
func (m Model) Rows() []model.Row {
	return m.frame.Rows
}

func (m Model) selected() model.Row {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.frame.Rows) {
		return nil
	}
	return m.frame.Rows[idx]
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchJobsCmd() tea.Cmd {
	source, limit, timeout := m.source, m.limit, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		jobs, err := source.ListJobRows(ctx, limit)
		if err != nil {
			return errMsg{err: err}
		}
		return jobsMsg{jobs: jobs, at: time.Now()}
	}
}
