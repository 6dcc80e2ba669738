package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/refresh"
	"go-laue-run-monitor/internal/session"
)

const metricPrefix = "laue_run_monitor_"

var (
	appStartedAtUnix = time.Now().Unix()
	inFlightRequests int64
	wsConnections    int64
	metricsMu        sync.Mutex
	httpSeries       = map[httpMetricKey]*httpMetricSeries{}
	dbQuerySeries    = map[dbMetricKey]*dbMetricSeries{}
	expansionSeries  = map[expansionMetricKey]uint64{}
	pollSeries       = map[string]*pollMetricSeries{}
	wsPushesTotal    uint64
	wsPushesDropped  uint64
)

func metricsHandler(sessions *session.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		metricsMu.Lock()
		keys := make([]httpMetricKey, 0, len(httpSeries))
		for k := range httpSeries {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].Method != keys[j].Method {
				return keys[i].Method < keys[j].Method
			}
			if keys[i].Path != keys[j].Path {
				return keys[i].Path < keys[j].Path
			}
			return keys[i].Status < keys[j].Status
		})
		httpSnapshot := make([]httpMetricSeries, 0, len(keys))
		for _, k := range keys {
			httpSnapshot = append(httpSnapshot, *httpSeries[k])
		}

		dbKeys := make([]dbMetricKey, 0, len(dbQuerySeries))
		for k := range dbQuerySeries {
			dbKeys = append(dbKeys, k)
		}
		sort.Slice(dbKeys, func(i, j int) bool {
			if dbKeys[i].Connector != dbKeys[j].Connector {
				return dbKeys[i].Connector < dbKeys[j].Connector
			}
			return dbKeys[i].Operation < dbKeys[j].Operation
		})
		dbSnapshot := make([]dbMetricSeries, 0, len(dbKeys))
		for _, k := range dbKeys {
			dbSnapshot = append(dbSnapshot, *dbQuerySeries[k])
		}

		expKeys := make([]expansionMetricKey, 0, len(expansionSeries))
		for k := range expansionSeries {
			expKeys = append(expKeys, k)
		}
		sort.Slice(expKeys, func(i, j int) bool {
			if expKeys[i].Kind != expKeys[j].Kind {
				return expKeys[i].Kind < expKeys[j].Kind
			}
			return expKeys[i].Action < expKeys[j].Action
		})
		expCounts := make([]uint64, 0, len(expKeys))
		for _, k := range expKeys {
			expCounts = append(expCounts, expansionSeries[k])
		}

		pollKeys := make([]string, 0, len(pollSeries))
		for k := range pollSeries {
			pollKeys = append(pollKeys, k)
		}
		sort.Strings(pollKeys)
		pollSnapshot := make([]pollMetricSeries, 0, len(pollKeys))
		for _, k := range pollKeys {
			pollSnapshot = append(pollSnapshot, *pollSeries[k])
		}
		pushes, dropped := wsPushesTotal, wsPushesDropped
		metricsMu.Unlock()

		help(w, "http_requests_total", "counter", "Total HTTP requests handled by this app.")
		for i, k := range keys {
			_, _ = fmt.Fprintf(w, "%shttp_requests_total{method=%q,path=%q,status=%q} %d\n", metricPrefix,
				escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status), httpSnapshot[i].Count)
		}
		help(w, "http_request_duration_seconds_sum", "counter", "Total duration in seconds for observed requests.")
		for i, k := range keys {
			_, _ = fmt.Fprintf(w, "%shttp_request_duration_seconds_sum{method=%q,path=%q,status=%q} %.9f\n", metricPrefix,
				escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status), httpSnapshot[i].DurationSecondsSum)
		}
		help(w, "http_request_duration_seconds_count", "counter", "Number of observed requests in duration series.")
		for i, k := range keys {
			_, _ = fmt.Fprintf(w, "%shttp_request_duration_seconds_count{method=%q,path=%q,status=%q} %d\n", metricPrefix,
				escapeLabel(k.Method), escapeLabel(k.Path), escapeLabel(k.Status), httpSnapshot[i].Count)
		}
		help(w, "http_in_flight_requests", "gauge", "In-flight HTTP requests currently served by this app.")
		_, _ = fmt.Fprintf(w, "%shttp_in_flight_requests %d\n", metricPrefix, atomic.LoadInt64(&inFlightRequests))

		help(w, "db_query_duration_seconds_sum", "counter", "Database query duration sum in seconds by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_duration_seconds_sum{connector=%q,operation=%q} %.9f\n", metricPrefix,
				escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnapshot[i].DurationSecondsSum)
		}
		help(w, "db_query_duration_seconds_count", "counter", "Database query observation count by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_duration_seconds_count{connector=%q,operation=%q} %d\n", metricPrefix,
				escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnapshot[i].Count)
		}
		help(w, "db_query_errors_total", "counter", "Database query errors by connector/operation.")
		for i, k := range dbKeys {
			_, _ = fmt.Fprintf(w, "%sdb_query_errors_total{connector=%q,operation=%q} %d\n", metricPrefix,
				escapeLabel(k.Connector), escapeLabel(k.Operation), dbSnapshot[i].Errors)
		}

		help(w, "expansion_events_total", "counter", "Subjob block materializations by trigger and action.")
		for i, k := range expKeys {
			_, _ = fmt.Fprintf(w, "%sexpansion_events_total{kind=%q,action=%q} %d\n", metricPrefix,
				escapeLabel(k.Kind), escapeLabel(k.Action), expCounts[i])
		}

		help(w, "refreshes_total", "counter", "Job listing polls by result.")
		for i, k := range pollKeys {
			_, _ = fmt.Fprintf(w, "%srefreshes_total{result=%q} %d\n", metricPrefix, escapeLabel(k), pollSnapshot[i].Count)
		}
		help(w, "refresh_duration_seconds_sum", "counter", "Job listing poll duration sum in seconds by result.")
		for i, k := range pollKeys {
			_, _ = fmt.Fprintf(w, "%srefresh_duration_seconds_sum{result=%q} %.9f\n", metricPrefix, escapeLabel(k), pollSnapshot[i].DurationSecondsSum)
		}

		if sessions != nil {
			help(w, "sessions_active", "gauge", "Run-monitor grids currently held in memory.")
			_, _ = fmt.Fprintf(w, "%ssessions_active %d\n", metricPrefix, sessions.Len())
		}
		help(w, "websocket_connections", "gauge", "Open run-monitor websocket connections.")
		_, _ = fmt.Fprintf(w, "%swebsocket_connections %d\n", metricPrefix, atomic.LoadInt64(&wsConnections))
		help(w, "websocket_pushes_total", "counter", "Row pushes written to websocket clients.")
		_, _ = fmt.Fprintf(w, "%swebsocket_pushes_total %d\n", metricPrefix, pushes)
		help(w, "websocket_pushes_throttled_total", "counter", "Row pushes skipped by the per-connection limiter.")
		_, _ = fmt.Fprintf(w, "%swebsocket_pushes_throttled_total %d\n", metricPrefix, dropped)

		uptime := time.Now().Unix() - appStartedAtUnix
		help(w, "uptime_seconds", "gauge", "Process uptime in seconds.")
		_, _ = fmt.Fprintf(w, "%suptime_seconds %d\n", metricPrefix, uptime)

		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		help(w, "runtime_goroutines", "gauge", "Number of goroutines.")
		_, _ = fmt.Fprintf(w, "%sruntime_goroutines %d\n", metricPrefix, runtime.NumGoroutine())
		help(w, "runtime_memory_alloc_bytes", "gauge", "Heap allocation bytes.")
		_, _ = fmt.Fprintf(w, "%sruntime_memory_alloc_bytes %d\n", metricPrefix, ms.Alloc)
		help(w, "runtime_gc_total", "counter", "Total GC runs since process start.")
		_, _ = fmt.Fprintf(w, "%sruntime_gc_total %d\n", metricPrefix, ms.NumGC)

		if cpuSec, ok := processCPUSeconds(); ok {
			help(w, "runtime_cpu_seconds_total", "counter", "Total CPU time consumed by this process in seconds.")
			_, _ = fmt.Fprintf(w, "%sruntime_cpu_seconds_total %.6f\n", metricPrefix, cpuSec)
		}
		if ios := processIOStats(); ios != nil {
			help(w, "runtime_io_read_bytes_total", "counter", "Bytes read by this process from storage.")
			_, _ = fmt.Fprintf(w, "%sruntime_io_read_bytes_total %d\n", metricPrefix, ios.ReadBytes)
			help(w, "runtime_io_write_bytes_total", "counter", "Bytes written by this process to storage.")
			_, _ = fmt.Fprintf(w, "%sruntime_io_write_bytes_total %d\n", metricPrefix, ios.WriteBytes)
		}
	})
}

func help(w io.Writer, name, kind, text string) {
	_, _ = fmt.Fprintf(w, "# HELP %s%s %s\n", metricPrefix, name, text)
	_, _ = fmt.Fprintf(w, "# TYPE %s%s %s\n", metricPrefix, name, kind)
}

func appMetricsSummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type endpointRow struct {
			Method  string  `json:"method"`
			Path    string  `json:"path"`
			Status  string  `json:"status"`
			Count   uint64  `json:"count"`
			AvgMS   float64 `json:"avg_ms"`
			TotalMS float64 `json:"total_ms"`
		}
		type dbRow struct {
			Connector string  `json:"connector"`
			Operation string  `json:"operation"`
			Count     uint64  `json:"count"`
			Errors    uint64  `json:"errors"`
			AvgMS     float64 `json:"avg_ms"`
		}

		metricsMu.Lock()
		httpRows := make([]endpointRow, 0, len(httpSeries))
		for k, s := range httpSeries {
			avg := 0.0
			if s.Count > 0 {
				avg = (s.DurationSecondsSum / float64(s.Count)) * 1000.0
			}
			httpRows = append(httpRows, endpointRow{
				Method:  k.Method,
				Path:    k.Path,
				Status:  k.Status,
				Count:   s.Count,
				AvgMS:   avg,
				TotalMS: s.DurationSecondsSum * 1000.0,
			})
		}

		dbRows := make([]dbRow, 0, len(dbQuerySeries))
		totalDBErrors := uint64(0)
		for k, s := range dbQuerySeries {
			avg := 0.0
			if s.Count > 0 {
				avg = (s.DurationSecondsSum / float64(s.Count)) * 1000.0
			}
			dbRows = append(dbRows, dbRow{
				Connector: k.Connector,
				Operation: k.Operation,
				Count:     s.Count,
				Errors:    s.Errors,
				AvgMS:     avg,
			})
			totalDBErrors += s.Errors
		}

		expansions := map[string]uint64{}
		for k, n := range expansionSeries {
			expansions[k.Kind] += n
		}
		metricsMu.Unlock()

		sort.Slice(httpRows, func(i, j int) bool { return httpRows[i].AvgMS > httpRows[j].AvgMS })
		sort.Slice(dbRows, func(i, j int) bool { return dbRows[i].AvgMS > dbRows[j].AvgMS })

		topHTTP := httpRows
		if len(topHTTP) > 5 {
			topHTTP = topHTTP[:5]
		}
		topDB := dbRows
		if len(topDB) > 5 {
			topDB = topDB[:5]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meta": map[string]any{
				"generated_at": time.Now().UTC(),
			},
			"data": map[string]any{
				"top_http_slowest_avg_ms": topHTTP,
				"top_db_slowest_avg_ms":   topDB,
				"expansion_events":        expansions,
				"errors": map[string]any{
					"db_query_total": totalDBErrors,
				},
			},
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware chain.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&inFlightRequests, 1)
		defer atomic.AddInt64(&inFlightRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := normalizeMetricPath(r.URL.Path)
		sec := time.Since(start).Seconds()
		recordHTTPMetric(r.Method, route, rec.status, sec)
	})
}

func normalizeMetricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/jobs/"):
		return "/api/v1/jobs/{id}"
	default:
		return path
	}
}

type httpMetricKey struct {
	Method string
	Path   string
	Status string
}

type httpMetricSeries struct {
	Count              uint64
	DurationSecondsSum float64
}

type dbMetricKey struct {
	Connector string
	Operation string
}

type dbMetricSeries struct {
	Count              uint64
	Errors             uint64
	DurationSecondsSum float64
}

type expansionMetricKey struct {
	Kind   string
	Action string
}

type pollMetricSeries struct {
	Count              uint64
	DurationSecondsSum float64
}

func recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	key := httpMetricKey{
		Method: method,
		Path:   path,
		Status: strconv.Itoa(status),
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := httpSeries[key]
	if !ok {
		row = &httpMetricSeries{}
		httpSeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
}

func recordDBQuery(connector, operation string, durationSeconds float64, err error) {
	if connector == "" || operation == "" {
		return
	}
	key := dbMetricKey{Connector: connector, Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := dbQuerySeries[key]
	if !ok {
		row = &dbMetricSeries{}
		dbQuerySeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
	if err != nil {
		row.Errors++
	}
}

func recordExpansion(ev expansion.Event) {
	key := expansionMetricKey{Kind: string(ev.Kind), Action: strings.ToLower(ev.Action.String())}
	metricsMu.Lock()
	expansionSeries[key]++
	metricsMu.Unlock()
}

func recordPoll(res refresh.Result) {
	result := "ok"
	if res.Err != nil {
		result = "error"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := pollSeries[result]
	if !ok {
		row = &pollMetricSeries{}
		pollSeries[result] = row
	}
	row.Count++
	row.DurationSecondsSum += res.Duration.Seconds()
}

func recordWSPush(sent bool) {
	metricsMu.Lock()
	if sent {
		wsPushesTotal++
	} else {
		wsPushesDropped++
	}
	metricsMu.Unlock()
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

func processCPUSeconds() (float64, bool) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	user := float64(ru.Utime.Sec) + (float64(ru.Utime.Usec) / 1_000_000.0)
	sys := float64(ru.Stime.Sec) + (float64(ru.Stime.Usec) / 1_000_000.0)
	return user + sys, true
}

type ioStats struct {
	ReadBytes  uint64
	WriteBytes uint64
}

func processIOStats() *ioStats {
	b, err := os.ReadFile("/proc/self/io")
	if err != nil {
		return nil
	}
	out := &ioStats{}
	for _, line := range strings.Split(string(b), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(parts[0]) {
		case "read_bytes":
			out.ReadBytes = v
		case "write_bytes":
			out.WriteBytes = v
		}
	}
	return out
}
