// Package render derives display values for run-monitor grid cells. Every function is
// a pure function of one row and returns empty values for rows it cannot interpret.
package render

import "go-laue-run-monitor/internal/model"

// Badge is a coloured status label. Color names follow the Bootstrap palette.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

var statusColors = map[model.Status]string{
	model.StatusQueued:    "warning",
	model.StatusRunning:   "info",
	model.StatusFinished:  "success",
	model.StatusFailed:    "danger",
	model.StatusCancelled: "secondary",
}

// StatusBadge maps a status code to its badge. Unknown codes render as
// "Unknown (n)" in the secondary colour.
func StatusBadge(s model.Status) Badge {
	color, ok := statusColors[s]
	if !ok {
		color = "secondary"
	}
	return Badge{Text: s.String(), Color: color}
}

// RowStatus returns the badge for either row kind.
func RowStatus(row model.Row) Badge {
	switch r := row.(type) {
	case *model.JobRow:
		if r == nil {
			return Badge{}
		}
		return StatusBadge(r.Status)
	case *model.SubJobRow:
		if r == nil {
			return Badge{}
		}
		return StatusBadge(r.Status)
	}
	return Badge{}
}
