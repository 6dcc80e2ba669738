package render

import (
	"fmt"

	"go-laue-run-monitor/internal/model"
)

// NoSubjobsLabel replaces the bar for jobs without subjobs.
const NoSubjobsLabel = "No subjobs"

// Segment is one proportional part of the subjob progress bar.
type Segment struct {
	Kind     string  `json:"kind"`
	Class    string  `json:"class"`
	WidthPct float64 `json:"width_pct"`
	Count    int     `json:"count"`
	Title    string  `json:"title"`
}

// ProgressView is the rendered subjob progress of a job row.
type ProgressView struct {
	Label    string    `json:"label"`
	Empty    bool      `json:"empty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Progress sizes completed, failed, running and queued segments by their share of the
// total. Zero-count segments are omitted.
func Progress(job *model.JobRow) ProgressView {
	if job == nil {
		return ProgressView{}
	}
	total := job.TotalSubjobs
	if total <= 0 {
		return ProgressView{Label: NoSubjobsLabel, Empty: true}
	}

	completed := nonNegative(job.CompletedSubjobs)
	parts := []struct {
		kind  string
		class string
		count int
	}{
		{"completed", "progress-bar bg-success", completed},
		{"failed", "progress-bar bg-danger", nonNegative(job.FailedSubjobs)},
		{"running", "progress-bar bg-info progress-bar-striped progress-bar-animated", nonNegative(job.RunningSubjobs)},
		{"queued", "progress-bar bg-warning", nonNegative(job.QueuedSubjobs)},
	}

	view := ProgressView{Label: fmt.Sprintf("%d/%d completed", completed, total)}
	for _, p := range parts {
		if p.count == 0 {
			continue
		}
		view.Segments = append(view.Segments, Segment{
			Kind:     p.kind,
			Class:    p.class,
			WidthPct: float64(p.count) / float64(total) * 100,
			Count:    p.count,
			Title:    fmt.Sprintf("%d %s", p.count, p.kind),
		})
	}
	return view
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
