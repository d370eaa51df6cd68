package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/infra/etcd"
	"job-dispatch/internal/infra/etcd/etcdtest"
	"job-dispatch/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextSnapshot(t *testing.T, ch <-chan []domain.WorkerHandle) []domain.WorkerHandle {
	t.Helper()
	select {
	case set, ok := <-ch:
		require.True(t, ok, "feed closed")
		return set
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for a membership snapshot")
		return nil
	}
}

func currentLease(r *Registry) clientv3.LeaseID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaseID
}

func TestRegistryLifecycle(t *testing.T) {
	client := etcdtest.Start(t)
	logger := testLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := etcd.NewMembershipFeed(client, 5*time.Second, 50*time.Millisecond, logger)
	ch, err := feed.Subscribe(ctx, "svc")
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, ch))

	self := domain.WorkerHandle{ID: "w1", Addr: "127.0.0.1:9"}
	registered := testutil.ToFloat64(metrics.RegistrationsTotal.WithLabelValues("ok"))
	r := NewRegistry(client, 2*time.Second, 50*time.Millisecond, logger)
	require.NoError(t, r.Register(ctx, "svc", self))
	assert.Equal(t, []domain.WorkerHandle{self}, nextSnapshot(t, ch))
	assert.Error(t, r.Register(ctx, "svc", self), "a registry holds one registration")

	// Lose the lease behind the worker's back; it must come back with a new one.
	firstLease := currentLease(r)
	_, err = client.Revoke(ctx, firstLease)
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, ch))
	assert.Equal(t, []domain.WorkerHandle{self}, nextSnapshot(t, ch))
	// The key is written before the new lease is recorded.
	require.Eventually(t, func() bool {
		return currentLease(r) != firstLease &&
			testutil.ToFloat64(metrics.RegistrationsTotal.WithLabelValues("ok"))-registered == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Deregister(ctx))
	assert.Empty(t, nextSnapshot(t, ch))

	resp, err := client.Get(ctx, etcd.WorkerKey("svc", "w1"))
	require.NoError(t, err)
	assert.Zero(t, resp.Count)

	// Deregistering twice is harmless.
	require.NoError(t, r.Deregister(ctx))
}
