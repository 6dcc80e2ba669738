package jobdb

import (
	"context"
	"time"

	"go-laue-run-monitor/internal/model"
)

// ServiceStats contains lightweight DB health and volume counters.
type ServiceStats struct {
	Driver         string           `json:"driver"`
	PingMS         int64            `json:"ping_ms"`
	JobsTotal      int64            `json:"jobs_total"`
	JobsByStatus   map[string]int64 `json:"jobs_by_status"`
	SubJobsTotal   int64            `json:"subjobs_total"`
	SubJobsRunning int64            `json:"subjobs_running"`
	SubJobsQueued  int64            `json:"subjobs_queued"`
}

// ServiceStats returns database health and job counters.
func (s *Store) ServiceStats(ctx context.Context) (*ServiceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return nil, err
	}

	out := &ServiceStats{
		Driver:       s.driver,
		PingMS:       time.Since(start).Milliseconds(),
		JobsByStatus: map[string]int64{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status int
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out.JobsByStatus[model.Status(status).String()] += n
		out.JobsTotal += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
FROM subjob;`, int(model.StatusRunning), int(model.StatusQueued)).Scan(&out.SubJobsTotal, &out.SubJobsRunning, &out.SubJobsQueued); err != nil {
		return nil, err
	}

	return out, nil
}
