package http

import (
	"context"
	nethttp "net/http"
	"time"

	"go-laue-run-monitor/internal/refresh"
	"go-laue-run-monitor/internal/session"
)

func servicesStatusHandler(store jobStore, sessions *session.Manager, poller *refresh.Poller) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		payload := map[string]any{
			"generated_at": time.Now().UTC(),
			"services":     map[string]any{},
		}
		services := payload["services"].(map[string]any)

		services["database"] = databaseStatus(ctx, store)
		services["poller"] = pollerStatus(poller)
		if sessions != nil {
			services["sessions"] = map[string]any{"enabled": true, "ok": true, "active": sessions.Len()}
		}

		writeJSON(w, nethttp.StatusOK, payload)
	}
}

func databaseStatus(ctx context.Context, store jobStore) map[string]any {
	if store == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "job database unavailable"}
	}

	start := time.Now()
	stats, err := store.ServiceStats(ctx)
	recordDBQuery("jobdb", "ServiceStats", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}
	return map[string]any{"enabled": true, "ok": true, "stats": stats}
}

func pollerStatus(poller *refresh.Poller) map[string]any {
	if poller == nil {
		return map[string]any{"enabled": false, "ok": false, "error": "poller not running"}
	}
	last := poller.Last()
	if last.At.IsZero() {
		return map[string]any{"enabled": true, "ok": false, "error": "no refresh yet"}
	}
	out := map[string]any{
		"enabled":      true,
		"ok":           last.Err == nil,
		"last_refresh": last.At.UTC(),
		"duration_ms":  last.Duration.Milliseconds(),
		"jobs":         last.Jobs,
		"sessions":     last.Sessions,
	}
	if last.Err != nil {
		out["error"] = last.Err.Error()
	}
	return out
}
