package render

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02 15:04:05"

// Placeholder marks an absent value on detail pages.
const Placeholder = "—"

// Date formats t as YYYY-MM-DD HH:MM:SS in 24h time; nil renders empty.
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Duration renders d as "<h>h <m>m <s>s". Negative durations clamp to zero.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// Elapsed renders the run time between start and finish. Without a finish time the
// duration is measured to now and marked as running; without a start it is empty.
func Elapsed(start, finish *time.Time, now time.Time) string {
	if start == nil {
		return ""
	}
	if finish != nil {
		return Duration(finish.Sub(*start))
	}
	return Duration(now.Sub(*start)) + " (running)"
}
