// Package housekeeping periodically removes expired sessions and stale
// rate-limit windows. The session resolver already ignores and deletes
// expired rows on sight; this job only keeps the tables from growing.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EmpoweredVote/memoboard/internal/metrics"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
)

// SessionSweeper is the part of store.Store the job needs.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

var _ SessionSweeper = (store.Store)(nil)

type Service struct {
	Store    SessionSweeper
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
	Schedule string

	now  utils.Clock
	cron *cron.Cron
	wg   sync.WaitGroup
}

// New validates schedule (standard five-field cron or a descriptor such as
// "@every 1h") and registers the cleanup job. An empty schedule returns a
// nil service, which Start and Stop accept.
func New(s SessionSweeper, limiter *ratelimit.Limiter, logger *slog.Logger, schedule string, now utils.Clock) (*Service, error) {
	if schedule == "" {
		return nil, nil
	}
	if now == nil {
		now = utils.Now
	}

	svc := &Service{
		Store:    s,
		Limiter:  limiter,
		Logger:   logger,
		Schedule: schedule,
		now:      now,
	}

	cl := cronLogger{logger}
	svc.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := svc.cron.AddFunc(schedule, func() { svc.Cleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("housekeeping schedule %q: %w", schedule, err)
	}
	return svc, nil
}

// Start runs one cleanup immediately and then follows the schedule. It does
// not block.
func (s *Service) Start() {
	if s == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Cleanup(context.Background())
	}()
	s.cron.Start()
	s.Logger.Info("housekeeping service started", "schedule", s.Schedule)
}

// Stop waits for a running cleanup to finish or for ctx to expire.
func (s *Service) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.Logger.Info("housekeeping service stopped")
}

// Cleanup performs one pass. Each part is independent, so a store failure
// does not stop the limiter sweep.
func (s *Service) Cleanup(ctx context.Context) (sessions int64, windows int) {
	s.Logger.Debug("starting housekeeping cleanup")

	n, err := s.Store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else {
		sessions = n
		metrics.RecordSessionsSwept(n)
	}

	if s.Limiter != nil {
		windows = s.Limiter.Sweep()
	}

	s.Logger.Info("housekeeping cleanup completed", "sessions_deleted", sessions, "rate_windows_dropped", windows)
	return sessions, windows
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
