// internal/outcome/handler.go
package outcome

import (
	"context"
	"log/slog"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"
)

// LogHandler reports resolved jobs to the log and to metrics. It never retries.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a reporting outcome handler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "outcome")}
}

var _ domain.OutcomeHandler = (*LogHandler)(nil)

func (h *LogHandler) OnCompleted(ctx context.Context, ev domain.JobCompleted) {
	metrics.JobOutcomesTotal.WithLabelValues("completed").Inc()
	metrics.JobRoundTrip.Observe(ev.Latency.Seconds())
	h.logger.InfoContext(ctx, "job completed",
		"job_id", ev.JobID,
		"worker", ev.Worker.String(),
		"payload", ev.Payload,
		"latency", ev.Latency,
	)
}

func (h *LogHandler) OnFailed(ctx context.Context, ev domain.JobFailed) {
	metrics.JobOutcomesTotal.WithLabelValues("failed").Inc()
	h.logger.WarnContext(ctx, "job failed",
		"job_id", ev.JobID,
		"worker", ev.Worker.String(),
		"reason", ev.Reason,
	)
}
