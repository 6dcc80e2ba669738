package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"go-laue-run-monitor/internal/connectors/jobdb"
	"go-laue-run-monitor/internal/render"
)

// jobListHandler returns job rows without any expansion applied.
func jobListHandler(defaultLimit int, store jobStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"error": "job database unavailable"})
			return
		}

		limit := parseLimit(r, defaultLimit)
		start := time.Now()
		jobs, err := store.ListJobRows(r.Context(), limit)
		recordDBQuery("jobdb", "ListJobRows", time.Since(start).Seconds(), err)
		if err != nil {
			writeJSON(w, dbErrorStatus(err), map[string]any{"error": "failed to fetch jobs"})
			return
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"limit": limit,
				"count": len(jobs),
			},
			"data": jobs,
		})
	}
}

// jobDetailHandler serves /api/v1/jobs/{id}.
func jobDetailHandler(store jobStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{"error": "job database unavailable"})
			return
		}

		raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/"), "/")
		if raw == "" || strings.Contains(raw, "/") {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		jobID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || jobID <= 0 {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{"error": "invalid job id"})
			return
		}

		start := time.Now()
		detail, err := store.GetJob(r.Context(), jobID)
		recordDBQuery("jobdb", "GetJob", time.Since(start).Seconds(), err)
		if errors.Is(err, jobdb.ErrJobNotFound) {
			writeJSON(w, nethttp.StatusNotFound, map[string]any{"error": "job not found"})
			return
		}
		if err != nil {
			writeJSON(w, dbErrorStatus(err), map[string]any{"error": "failed to fetch job"})
			return
		}

		links := make([]render.Link, 0, len(detail.Related))
		for _, e := range detail.Related {
			links = append(links, render.RelatedLink(e))
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": detail,
			"view": map[string]any{
				"status":      render.StatusBadge(detail.Job.Status),
				"submit_time": placeholderDate(render.Date(detail.Job.SubmitTime)),
				"start_time":  placeholderDate(render.Date(detail.Job.StartTime)),
				"finish_time": placeholderDate(render.Date(detail.Job.FinishTime)),
				"progress":    render.Progress(&detail.Job),
				"related":     links,
			},
		})
	}
}

func placeholderDate(s string) string {
	if s == "" {
		return render.Placeholder
	}
	return s
}

func dbErrorStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nethttp.ErrHandlerTimeout) {
		return nethttp.StatusGatewayTimeout
	}
	return nethttp.StatusInternalServerError
}

func parseLimit(r *nethttp.Request, defaultLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	return limit
}
