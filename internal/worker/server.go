// internal/worker/server.go
package worker

import (
	"context"
	"log/slog"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Server is the worker's Transform implementation, served over gRPC.
type Server struct {
	workerID string
	delay    time.Duration
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewServer creates a worker server. delay simulates slow processing and is
// normally zero.
func NewServer(workerID string, delay time.Duration, logger *slog.Logger) *Server {
	return &Server{
		workerID: workerID,
		delay:    delay,
		now:      time.Now,
		logger:   logger.With("component", "grpc-server", "worker_id", workerID),
		tracer:   otel.Tracer("job-dispatch-worker"),
	}
}

// Transform annotates the request and replies to the caller.
func (s *Server) Transform(ctx context.Context, req domain.JobRequest) (domain.JobReply, error) {
	ctx, span := s.tracer.Start(ctx, "worker.Transform",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("job.origin_tag", req.OriginTag),
		))
	defer span.End()

	s.logger.Info("received job", "job_id", req.JobID, "origin_tag", req.OriginTag)
	metrics.TransformRequestsTotal.WithLabelValues(req.OriginTag).Inc()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "caller gave up")
			return domain.JobReply{}, ctx.Err()
		}
	}

	text := Annotate(req, s.now())
	span.SetStatus(codes.Ok, "job transformed")
	return domain.JobReply{Text: text}, nil
}
