package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/render"
)

const barWidth = 12

var (
	brand     = lipgloss.Color("#0e5d8f")
	subtle    = lipgloss.Color("241")
	errorTint = lipgloss.Color("#d9534f")

	badgeColors = map[string]lipgloss.Color{
		"warning":   lipgloss.Color("#f0ad4e"),
		"info":      lipgloss.Color("#5bc0de"),
		"success":   lipgloss.Color("#5cb85c"),
		"danger":    lipgloss.Color("#d9534f"),
		"secondary": lipgloss.Color("#6c757d"),
	}

	segmentGlyphs = map[string]string{
		"completed": "█",
		"failed":    "▓",
		"running":   "▒",
		"queued":    "░",
	}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(brand).
			Padding(0, 1)
	subtleStyle = lipgloss.NewStyle().Foreground(subtle)
	errorStyle  = lipgloss.NewStyle().Foreground(errorTint).Bold(true)
	badgeStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(brand).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(subtle).
				Padding(0, 1)
	tableSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ffffff")).
				Background(brand)
)

func tableColumns() []table.Column {
	return []table.Column{
		{Title: "", Width: 2},
		{Title: "Job ID", Width: 8},
		{Title: "SubJob ID", Width: 10},
		{Title: "Computer", Width: 14},
		{Title: "Status", Width: 10},
		{Title: "Priority", Width: 8},
		{Title: "Date", Width: 19},
		{Title: "Start", Width: 19},
		{Title: "Finish", Width: 19},
		{Title: "Duration", Width: 20},
		{Title: "SubJobs Progress", Width: barWidth + 12},
	}
}

// tableRow renders one grid row as table cells. Table cells stay free of escape codes;
// colour is applied in the detail line below the table.
func tableRow(row model.Row, states map[int64]expansion.State) table.Row {
	switch r := row.(type) {
	case *model.JobRow:
		return table.Row{
			render.ExpandIndicator(r, states[r.JobID]),
			strconv.FormatInt(r.JobID, 10),
			"",
			r.ComputerName,
			r.Status.String(),
			strconv.Itoa(r.Priority),
			render.Date(r.SubmitTime),
			render.Date(r.StartTime),
			render.Date(r.FinishTime),
			"",
			progressCell(render.Progress(r)),
		}
	case *model.SubJobRow:
		return table.Row{
			"",
			"",
			"└ " + strconv.FormatInt(r.SubJobID, 10),
			r.ComputerName,
			r.Status.String(),
			strconv.Itoa(r.Priority),
			"",
			render.Date(r.StartTime),
			render.Date(r.FinishTime),
			r.DurationDisplay,
			"",
		}
	}
	return table.Row{}
}

func progressCell(p render.ProgressView) string {
	if p.Empty {
		return p.Label
	}
	return progressBar(p, barWidth, nil) + " " + strings.TrimSuffix(p.Label, " completed")
}

// progressBar draws the segments of p across width cells. Each segment gets its rounded
// share, and the remainder goes to the largest segments so the bar is always full.
// paint, when non-nil, styles each segment's run of glyphs.
func progressBar(p render.ProgressView, width int, paint func(kind, s string) string) string {
	if p.Empty || len(p.Segments) == 0 || width <= 0 {
		return strings.Repeat(" ", max(width, 0))
	}

	cells := make([]int, len(p.Segments))
	used := 0
	for i, seg := range p.Segments {
		cells[i] = int(math.Floor(seg.WidthPct * float64(width) / 100))
		used += cells[i]
	}
	for used < width {
		best := 0
		bestRem := -1.0
		for i, seg := range p.Segments {
			exact := seg.WidthPct * float64(width) / 100
			if rem := exact - float64(cells[i]); rem > bestRem {
				best, bestRem = i, rem
			}
		}
		cells[best]++
		used++
	}

	var b strings.Builder
	for i, seg := range p.Segments {
		if cells[i] == 0 {
			continue
		}
		run := strings.Repeat(segmentGlyphs[seg.Kind], cells[i])
		if paint != nil {
			run = paint(seg.Kind, run)
		}
		b.WriteString(run)
	}
	return b.String()
}

var segmentColors = map[string]lipgloss.Color{
	"completed": badgeColors["success"],
	"failed":    badgeColors["danger"],
	"running":   badgeColors["info"],
	"queued":    badgeColors["warning"],
}

func paintSegment(kind, s string) string {
	return lipgloss.NewStyle().Foreground(segmentColors[kind]).Render(s)
}

func renderBadge(b render.Badge) string {
	color, ok := badgeColors[b.Color]
	if !ok {
		color = badgeColors["secondary"]
	}
	return badgeStyle.Background(color).Render(strings.ToUpper(b.Text))
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("Laue Run Monitor")
	jobs := len(model.JobRows(m.frame.Rows))
	status := fmt.Sprintf("%d jobs, %d rows", jobs, len(m.frame.Rows))
	if !m.lastRefresh.IsZero() {
		status += ", updated " + m.lastRefresh.Format("15:04:05")
	}
	if m.loading {
		status += ", refreshing…"
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, header, " ", subtleStyle.Render(status)))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("refresh failed: " + m.err.Error()))
	}
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.detailLine())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// detailLine summarizes the selected row with a coloured badge and progress bar.
func (m Model) detailLine() string {
	row := m.selected()
	if row == nil {
		return subtleStyle.Render("No jobs")
	}
	badge := renderBadge(render.RowStatus(row))
	switch r := row.(type) {
	case *model.JobRow:
		p := render.Progress(r)
		parts := []string{fmt.Sprintf("Job %d", r.JobID), badge}
		if p.Empty {
			parts = append(parts, subtleStyle.Render(p.Label))
		} else {
			parts = append(parts, progressBar(p, barWidth*2, paintSegment), p.Label)
		}
		for _, ref := range render.JobRefs(r) {
			parts = append(parts, subtleStyle.Render(ref.Table.Text+": "+ref.ID.Text))
		}
		return strings.Join(parts, "  ")
	case *model.SubJobRow:
		parts := []string{fmt.Sprintf("SubJob %d of job %d", r.SubJobID, r.ParentJobID), badge}
		if r.DurationDisplay != "" {
			parts = append(parts, r.DurationDisplay)
		}
		if r.Messages != "" {
			parts = append(parts, subtleStyle.Render(r.Messages))
		}
		return strings.Join(parts, "  ")
	}
	return ""
}
