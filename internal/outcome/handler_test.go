package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestOnCompletedLogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
	before := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("completed"))

	h.OnCompleted(context.Background(), domain.JobCompleted{
		JobID:   "job-card-17",
		Worker:  domain.WorkerHandle{ID: "w1", Addr: "localhost:7001"},
		Payload: "job-card-17. Dispatched-at 1760000000000",
		Latency: 12 * time.Millisecond,
	})

	rec := decodeLine(t, &buf)
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "job completed", rec["msg"])
	assert.Equal(t, "outcome", rec["component"])
	assert.Equal(t, "job-card-17", rec["job_id"])
	assert.Equal(t, "w1@localhost:7001", rec["worker"])
	assert.Equal(t, "job-card-17. Dispatched-at 1760000000000", rec["payload"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("completed"))-before)
}

func TestOnFailedLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	h := NewLogHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
	before := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("failed"))

	h.OnFailed(context.Background(), domain.JobFailed{
		JobID:  "job-card-99",
		Worker: domain.WorkerHandle{ID: "w2", Addr: "localhost:7002"},
		Reason: domain.ReasonTimedOut,
	})

	rec := decodeLine(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "job failed", rec["msg"])
	assert.Equal(t, "job-card-99", rec["job_id"])
	assert.Equal(t, "Processing timed out", rec["reason"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("failed"))-before)
}
