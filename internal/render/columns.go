package render

import "go-laue-run-monitor/internal/expansion"

// Column describes one grid column for the client.
type Column struct {
	Field      string `json:"field"`
	HeaderName string `json:"header_name"`
	Renderer   string `json:"renderer,omitempty"`
	Width      int    `json:"width,omitempty"`
	Sortable   bool   `json:"sortable"`
	Filter     bool   `json:"filter"`
}

var headerNames = map[string]string{
	"wirerecon_id":     "Recon ID (Wire)",
	"scanNumber":       "Scan ID",
	"calib_id":         "Calibration ID",
	"submit_time":      "Date",
	"subjob_id":        "SubJob ID",
	"duration_display": "Duration",
	"total_subjobs":    "SubJobs Progress",
}

// HeaderName returns the display header for a field, title-casing unknown fields.
func HeaderName(field string) string {
	if h, ok := headerNames[field]; ok {
		return h
	}
	out := []byte(field)
	upper := true
	for i, c := range out {
		switch {
		case c == '_':
			out[i] = ' '
			upper = true
		case upper && c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
			upper = false
		default:
			upper = false
		}
	}
	return string(out)
}

// Columns returns the run-monitor column layout: the expand control first, the job
// reference list second, then the data fields.
func Columns() []Column {
	cols := []Column{
		{Field: expansion.ExpandColumn, Renderer: "ExpandCollapse", Width: 50},
		{Field: "job_refs", HeaderName: "Job Reference", Renderer: "JobRefs", Width: 200, Sortable: true, Filter: true},
	}
	fields := []struct {
		field    string
		renderer string
		width    int
	}{
		{"job_id", "JobIdLink", 0},
		{"subjob_id", "", 0},
		{"computer_name", "", 0},
		{"status", "Status", 0},
		{"priority", "", 0},
		{"submit_time", "Date", 0},
		{"start_time", "Date", 0},
		{"finish_time", "Date", 0},
		{"duration_display", "", 0},
		{"total_subjobs", "SubJobProgress", 200},
		{"messages", "", 0},
	}
	for _, f := range fields {
		cols = append(cols, Column{
			Field:      f.field,
			HeaderName: HeaderName(f.field),
			Renderer:   f.renderer,
			Width:      f.width,
			Sortable:   true,
			Filter:     true,
		})
	}
	return append(cols, Column{Field: "actions", HeaderName: "Actions", Width: 200})
}
