// internal/scheduler/cron_scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"job-dispatch/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// cronScheduler pokes a ticker at a fixed delay. It only triggers; the
// ticker decides whether a tick originates any work.
type cronScheduler struct {
	cron     *cron.Cron
	ticker   domain.Ticker
	interval time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewCronScheduler creates a scheduler that calls ticker.Tick every interval,
// the first time one interval after Run starts. cron resolves delays to whole
// seconds, so interval must be at least one second.
func NewCronScheduler(ticker domain.Ticker, interval time.Duration, logger *slog.Logger) (domain.Schedular, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("tick interval %s is below one second", interval)
	}
	return &cronScheduler{
		cron:     cron.New(),
		ticker:   ticker,
		interval: interval,
		logger:   logger.With("component", "cron-scheduler"),
		tracer:   otel.Tracer("job-dispatch-scheduler"),
	}, nil
}

func (s *cronScheduler) Run(ctx context.Context) error {
	entryID := s.cron.Schedule(cron.Every(s.interval), &tickJob{
		ticker:   s.ticker,
		interval: s.interval,
		tracer:   s.tracer,
	})

	s.logger.Info("cron scheduler started", "interval", s.interval)
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cron.Remove(entryID)
	s.logger.Info("cron scheduler stopped")
	return ctx.Err()
}

// tickJob is called by the cron library.
type tickJob struct {
	ticker   domain.Ticker
	interval time.Duration
	tracer   trace.Tracer
}

func (j *tickJob) Run() {
	_, span := j.tracer.Start(context.Background(), "scheduler.Tick",
		trace.WithAttributes(attribute.String("tick.interval", j.interval.String())))
	defer span.End()

	j.ticker.Tick()
}
