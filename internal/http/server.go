package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/ternarybob/arbor"

	"go-laue-run-monitor/internal/config"
	"go-laue-run-monitor/internal/connectors/jobdb"
	"go-laue-run-monitor/internal/expansion"
	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/refresh"
	"go-laue-run-monitor/internal/session"
)

// jobStore is the database surface the handlers need.
type jobStore interface {
	ListJobRows(ctx context.Context, limit int) ([]model.JobRow, error)
	GetJob(ctx context.Context, jobID int64) (*model.JobDetail, error)
	ServiceStats(ctx context.Context) (*jobdb.ServiceStats, error)
}

// instrumentedStore records query timings for every listing the poller makes.
type instrumentedStore struct {
	jobStore
}

func (s instrumentedStore) ListJobRows(ctx context.Context, limit int) ([]model.JobRow, error) {
	start := time.Now()
	jobs, err := s.jobStore.ListJobRows(ctx, limit)
	recordDBQuery("jobdb", "ListJobRows", time.Since(start).Seconds(), err)
	return jobs, err
}

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	store      *jobdb.Store
	sessions   *session.Manager
	poller     *refresh.Poller
	hub        *wsHub
	logger     arbor.ILogger
	schedule   string
	cancel     context.CancelFunc
}

// NewServer opens the job database and creates a configured HTTP server with v1 endpoints.
func NewServer(cfg config.Config, logger arbor.ILogger) (*Server, error) {
	store, err := jobdb.Open(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionIdleTTL, logger, session.WithObserver(observeExpansion(logger)))
	poller := refresh.NewPoller(instrumentedStore{store}, sessions, cfg.DefaultJobLimit, cfg.DBQueryTimeout, logger)
	hub := newWSHub(sessions, cfg.WSPushInterval, logger)
	poller.OnRefresh(func(res refresh.Result) {
		recordPoll(res)
		if res.Err == nil {
			hub.PublishAll()
		}
	})

	mux := newMux(routes{
		defaultLimit: cfg.DefaultJobLimit,
		store:        store,
		sessions:     sessions,
		poller:       poller,
		hub:          hub,
	})

	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      loggingMiddleware(logger, observabilityMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		httpServer: httpServer,
		store:      store,
		sessions:   sessions,
		poller:     poller,
		hub:        hub,
		logger:     logger,
		schedule:   cfg.RefreshSchedule,
	}, nil
}

// routes carries the dependencies shared by the handlers.
type routes struct {
	defaultLimit int
	store        jobStore
	sessions     *session.Manager
	poller       *refresh.Poller
	hub          *wsHub
}

func newMux(rt routes) *nethttp.ServeMux {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/", runMonitorPageHandler)
	mux.HandleFunc("/favicon.ico", faviconHandler)
	mux.Handle("/metrics", metricsHandler(rt.sessions))
	mux.HandleFunc("/api/v1/metrics/app", appMetricsSummaryHandler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(rt.poller))
	mux.HandleFunc("/api/v1/run-monitor/rows", rowsHandler(rt.sessions, rt.poller))
	mux.HandleFunc("/api/v1/run-monitor/toggle", toggleHandler(rt.sessions))
	mux.HandleFunc("/api/v1/run-monitor/state", stateHandler(rt.sessions))
	mux.HandleFunc("/api/v1/run-monitor/columns", columnsHandler)
	mux.HandleFunc("/api/v1/jobs", jobListHandler(rt.defaultLimit, rt.store))
	mux.HandleFunc("/api/v1/jobs/", jobDetailHandler(rt.store))
	mux.HandleFunc("/api/v1/status/services", servicesStatusHandler(rt.store, rt.sessions, rt.poller))
	if rt.hub != nil {
		mux.HandleFunc("/ws/run-monitor", rt.hub.handle)
	}
	return mux
}

// ListenAndServe starts the refresh poller and the HTTP server.
func (s *Server) ListenAndServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if err := s.poller.Start(ctx, s.schedule); err != nil {
		cancel()
		return err
	}
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, the poller and open websockets.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		s.poller.Stop()
	}
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	if s.store != nil {
		_ = s.store.Close()
	}
	return err
}

func observeExpansion(logger arbor.ILogger) func(string, expansion.Event) {
	return func(sessionID string, ev expansion.Event) {
		recordExpansion(ev)
		if ev.Kind == expansion.EventRestore {
			return
		}
		logger.Debug().
			Str("session", sessionID).
			Str("kind", string(ev.Kind)).
			Int64("job_id", ev.JobID).
			Str("action", ev.Action.String()).
			Int("rows", ev.Rows).
			Msg("Expansion changed")
	}
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(poller *refresh.Poller) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		if poller == nil {
			writeJSON(w, nethttp.StatusOK, map[string]any{"status": "ready"})
			return
		}
		last := poller.Last()
		if last.At.IsZero() || last.Err != nil {
			payload := map[string]any{"status": "not_ready"}
			if last.Err != nil {
				payload["error"] = last.Err.Error()
			}
			writeJSON(w, nethttp.StatusServiceUnavailable, payload)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status":       "ready",
			"last_refresh": last.At.UTC(),
		})
	}
}

func loggingMiddleware(logger arbor.ILogger, next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
