package usecase

import (
	"context"
	"log/slog"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"
)

// SchedularService runs the tick scheduler, optionally only while this node
// holds leadership.
type SchedularService struct {
	leaderManager domain.LeaderElectionManager
	schedular     domain.Schedular
	nodeID        string
	retry         time.Duration
	logger        *slog.Logger
}

// NewSchedularService creates the service. A nil leaderManager means the
// scheduler runs unconditionally.
func NewSchedularService(leaderManager domain.LeaderElectionManager, schedular domain.Schedular, nodeID string, retry time.Duration, logger *slog.Logger) *SchedularService {
	return &SchedularService{
		leaderManager: leaderManager,
		schedular:     schedular,
		nodeID:        nodeID,
		retry:         retry,
		logger:        logger.With("component", "schedular-service", "node_id", nodeID),
	}
}

// Start blocks until ctx is done.
func (s *SchedularService) Start(ctx context.Context) error {
	if s.leaderManager == nil {
		s.logger.Info("leader election disabled, starting the scheduler")
		return s.schedular.Run(ctx)
	}

	s.logger.Info("scheduler service starting")
	metrics.IsLeader.WithLabelValues(s.nodeID).Set(0)
	for {
		s.logger.Info("attempting to campaign for leadership")
		lostLeadershipCh, err := s.leaderManager.Campaign(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("error during leadership campaign, retrying", "error", err, "retry_in", s.retry)
			select {
			case <-time.After(s.retry):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s.logger.Info("became the leader, starting the scheduler")
		metrics.IsLeader.WithLabelValues(s.nodeID).Set(1)
		if s.lead(ctx, lostLeadershipCh) {
			metrics.IsLeader.WithLabelValues(s.nodeID).Set(0)
			s.resign()
			s.logger.Info("scheduler service shutting down")
			return ctx.Err()
		}
		metrics.IsLeader.WithLabelValues(s.nodeID).Set(0)
		s.logger.Warn("lost leadership, scheduler stopped")
	}
}

// lead runs the scheduler until leadership is lost or ctx is done. It
// reports whether ctx ended.
func (s *SchedularService) lead(ctx context.Context, lost <-chan struct{}) bool {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.schedular.Run(runCtx)
	}()

	var stopped bool
	select {
	case <-lost:
	case <-ctx.Done():
		stopped = true
	}
	cancel()
	<-done
	return stopped
}

func (s *SchedularService) resign() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.leaderManager.Resign(ctx); err != nil {
		s.logger.Warn("failed to resign leadership", "error", err)
	}
}
