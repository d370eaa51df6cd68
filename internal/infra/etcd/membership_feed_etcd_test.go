package etcd

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/infra/etcd/etcdtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a membership snapshot")
		return nil
	}
}

func TestFeedFollowsRegistrations(t *testing.T) {
	client := etcdtest.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.Put(ctx, WorkerKey("svc", "w0"), "127.0.0.1:8")
	require.NoError(t, err)

	feed := NewMembershipFeed(client, 5*time.Second, 50*time.Millisecond, testLogger())
	ch, err := feed.Subscribe(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkerHandle{{ID: "w0", Addr: "127.0.0.1:8"}}, nextSnapshot(t, ch))

	// Registrations under other service keys are not ours.
	_, err = client.Put(ctx, WorkerKey("other", "z"), "127.0.0.1:99")
	require.NoError(t, err)
	_, err = client.Put(ctx, WorkerKey("svc", "w1"), "127.0.0.1:9")
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkerHandle{
		{ID: "w0", Addr: "127.0.0.1:8"},
		{ID: "w1", Addr: "127.0.0.1:9"},
	}, nextSnapshot(t, ch))

	_, err = client.Delete(ctx, WorkerKey("svc", "w0"))
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkerHandle{{ID: "w1", Addr: "127.0.0.1:9"}}, nextSnapshot(t, ch))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFeedRelistsAfterCompactedWatch(t *testing.T) {
	client := etcdtest.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.Put(ctx, WorkerKey("svc", "w1"), "127.0.0.1:9")
	require.NoError(t, err)
	_, err = client.Put(ctx, WorkerKey("svc", "w2"), "127.0.0.1:10")
	require.NoError(t, err)
	resp, err := client.Delete(ctx, WorkerKey("svc", "w1"))
	require.NoError(t, err)
	_, err = client.Compact(ctx, resp.Header.Revision)
	require.NoError(t, err)

	// Resume from a revision that no longer exists; the watch fails with
	// ErrCompacted and the feed must rebuild from a fresh listing.
	feed := NewMembershipFeed(client, 5*time.Second, 50*time.Millisecond, testLogger())
	out := make(chan []domain.WorkerHandle, 1)
	go feed.watch(ctx, "svc", memberSet{"w1": "127.0.0.1:9"}, 1, out)

	assert.Equal(t, []domain.WorkerHandle{{ID: "w2", Addr: "127.0.0.1:10"}}, nextSnapshot(t, out))

	// The watch resumes after the resync.
	_, err = client.Put(ctx, WorkerKey("svc", "w3"), "127.0.0.1:11")
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkerHandle{
		{ID: "w2", Addr: "127.0.0.1:10"},
		{ID: "w3", Addr: "127.0.0.1:11"},
	}, nextSnapshot(t, out))
}
