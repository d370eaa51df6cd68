package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDirectory []domain.WorkerHandle

func (s staticDirectory) Snapshot() []domain.WorkerHandle { return s }

type staticStatus domain.DispatcherStatus

func (s staticStatus) Status() domain.DispatcherStatus { return domain.DispatcherStatus(s) }

type fixedLeader bool

func (f fixedLeader) Campaign(context.Context) (<-chan struct{}, error) { return nil, nil }
func (f fixedLeader) Resign(context.Context) error                      { return nil }
func (f fixedLeader) IsLeader() bool                                    { return bool(f) }

func newTestMux(dir domain.WorkerDirectory, st DispatcherStatusProvider) *http.ServeMux {
	return newLeaderTestMux(dir, st, nil)
}

func newLeaderTestMux(dir domain.WorkerDirectory, st DispatcherStatusProvider, leader domain.LeaderElectionManager) *http.ServeMux {
	mux := http.NewServeMux()
	NewStatusHandler(dir, st, leader, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux)
	return mux
}

func TestGetWorkers(t *testing.T) {
	mux := newTestMux(staticDirectory{
		{ID: "a", Addr: "localhost:7001"},
		{ID: "b", Addr: "localhost:7002"},
	}, staticStatus{State: domain.StateIdle})
	before := testutil.ToFloat64(metrics.HttpRequestsTotal.WithLabelValues("/workers", "GET", "200"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body WorkersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, WorkerResponse{ID: "b", Addr: "localhost:7002"}, body.Workers[1])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HttpRequestsTotal.WithLabelValues("/workers", "GET", "200"))-before)
}

func TestGetWorkersEmpty(t *testing.T) {
	mux := newTestMux(staticDirectory(nil), staticStatus{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"workers":[]}`, rec.Body.String())
}

func TestGetDispatcher(t *testing.T) {
	since := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	mux := newTestMux(staticDirectory(nil), staticStatus{
		State:         domain.StateAwaiting,
		Dispatched:    7,
		PendingJobID:  "job-card-12",
		PendingWorker: "a@localhost:7001",
		PendingSince:  &since,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatcher", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"state": "awaiting",
		"dispatched": 7,
		"pending_job_id": "job-card-12",
		"pending_worker": "a@localhost:7001",
		"pending_since": "2026-10-19T09:00:00Z"
	}`, rec.Body.String())
}

func TestIdleDispatcherOmitsPendingFields(t *testing.T) {
	mux := newTestMux(staticDirectory(nil), staticStatus{State: domain.StateIdle, Dispatched: 3})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatcher", nil))

	assert.JSONEq(t, `{"state":"idle","dispatched":3}`, rec.Body.String())
}

func TestDispatcherReportsLeadership(t *testing.T) {
	for _, leading := range []bool{true, false} {
		mux := newLeaderTestMux(staticDirectory(nil), staticStatus{State: domain.StateIdle}, fixedLeader(leading))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatcher", nil))

		var body DispatcherResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.NotNil(t, body.Leader)
		assert.Equal(t, leading, *body.Leader)
	}
}

func TestStatusRejectsWrites(t *testing.T) {
	mux := newTestMux(staticDirectory(nil), staticStatus{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatcher", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
