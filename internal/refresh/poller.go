// Package refresh polls the job database on a schedule and pushes each listing to every
// open run-monitor session.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"go-laue-run-monitor/internal/config"
	"go-laue-run-monitor/internal/model"
	"go-laue-run-monitor/internal/session"
)

// JobSource lists jobs with their subjobs, newest first.
type JobSource interface {
	ListJobRows(ctx context.Context, limit int) ([]model.JobRow, error)
}

// Result summarizes one poll.
type Result struct {
	At       time.Time
	Jobs     int
	Sessions int
	Evicted  []string
	Duration time.Duration
	Err      error
}

// Poller runs one listing per tick and fans it out to the session manager.
type Poller struct {
	source   JobSource
	sessions *session.Manager
	limit    int
	timeout  time.Duration
	logger   arbor.ILogger
	cron     *cron.Cron
	now      func() time.Time

	runMu     sync.Mutex
	mu        sync.RWMutex
	listeners []func(Result)
	last      Result
}

func NewPoller(source JobSource, sessions *session.Manager, limit int, timeout time.Duration, logger arbor.ILogger) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{
		source:   source,
		sessions: sessions,
		limit:    limit,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		cron: cron.New(
			cron.WithParser(config.ScheduleParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// OnRefresh registers fn to run after every poll, successful or not.
func (p *Poller) OnRefresh(fn func(Result)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start schedules polling. The first poll runs immediately so new sessions have rows.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 5s"
	}
	if _, err := p.cron.AddFunc(schedule, func() {
		_, _ = p.RefreshNow(ctx)
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	_, _ = p.RefreshNow(ctx)
	p.cron.Start()
	p.logger.Info().Str("schedule", schedule).Int("limit", p.limit).Msg("Run monitor poller started")
	return nil
}

// Stop halts the schedule and waits for a poll in progress.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info().Msg("Run monitor poller stopped")
}

// RefreshNow polls immediately. Concurrent callers run one after the other.
func (p *Poller) RefreshNow(ctx context.Context) (Result, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := p.now()
	res := Result{At: start}

	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	jobs, err := p.source.ListJobRows(qctx, p.limit)
	cancel()

	if err != nil {
		res.Err = err
		res.Duration = p.now().Sub(start)
		p.logger.Warn().Err(err).Msg("Job listing failed; grids keep their previous rows")
	} else {
		res.Jobs = len(jobs)
		res.Sessions = p.sessions.Broadcast(jobs)
		res.Evicted = p.sessions.Sweep(p.now())
		res.Duration = p.now().Sub(start)
		p.logger.Debug().
			Int("jobs", res.Jobs).
			Int("sessions", res.Sessions).
			Dur("duration", res.Duration).
			Msg("Run monitor refreshed")
	}

	p.mu.Lock()
	p.last = res
	listeners := append([]func(Result){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(res)
	}
	return res, res.Err
}

// Last returns the most recent poll result.
func (p *Poller) Last() Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
