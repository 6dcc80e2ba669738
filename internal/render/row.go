package render

import (
	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/model"
)

const (
	glyphExpanded  = "▼"
	glyphCollapsed = "▶"
)

// ExpandIndicator renders the expand control of a job row. Subjob rows and jobs
// without subjobs get no control.
func ExpandIndicator(row model.Row, st expansion.State) string {
	job, ok := row.(*model.JobRow)
	if !ok || job == nil || job.TotalSubjobs <= 0 {
		return ""
	}
	if st.Expanded {
		return glyphExpanded
	}
	return glyphCollapsed
}

// RowView is one grid row with its derived cells.
type RowView struct {
	RowType    model.RowType `json:"row_type"`
	Row        model.Row     `json:"data"`
	Expand     string        `json:"expand"`
	Expandable bool          `json:"expandable"`
	ID         Link          `json:"id"`
	Status     Badge         `json:"status"`
	Progress   *ProgressView `json:"progress,omitempty"`
	Refs       []Ref         `json:"refs,omitempty"`
	SubmitTime string        `json:"submit_time,omitempty"`
	StartTime  string        `json:"start_time,omitempty"`
	FinishTime string        `json:"finish_time,omitempty"`
}

// View renders every row of a frame.
func View(frame expansion.Frame) []RowView {
	out := make([]RowView, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		if row == nil {
			continue
		}
		out = append(out, ViewRow(row, frame.States))
	}
	return out
}

// ViewRow renders one row given the expansion states of its grid.
func ViewRow(row model.Row, states map[int64]expansion.State) RowView {
	v := RowView{RowType: row.RowType(), Row: row, ID: IDLink(row), Status: RowStatus(row)}
	switch r := row.(type) {
	case *model.JobRow:
		if r == nil {
			return v
		}
		v.Expand = ExpandIndicator(r, states[r.JobID])
		v.Expandable = v.Expand != ""
		p := Progress(r)
		v.Progress = &p
		v.Refs = JobRefs(r)
		v.SubmitTime = Date(r.SubmitTime)
		v.StartTime = Date(r.StartTime)
		v.FinishTime = Date(r.FinishTime)
	case *model.SubJobRow:
		if r == nil {
			return v
		}
		v.StartTime = Date(r.StartTime)
		v.FinishTime = Date(r.FinishTime)
	}
	return v
}
