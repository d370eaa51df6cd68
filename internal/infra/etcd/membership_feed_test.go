package etcd

import (
	"io"
	"log/slog"
	"testing"

	"job-dispatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func put(key, value string) *clientv3.Event {
	return &clientv3.Event{Type: clientv3.EventTypePut, Kv: &mvccpb.KeyValue{Key: []byte(key), Value: []byte(value)}}
}

func del(key string) *clientv3.Event {
	return &clientv3.Event{Type: clientv3.EventTypeDelete, Kv: &mvccpb.KeyValue{Key: []byte(key)}}
}

func TestWorkerKeyLayout(t *testing.T) {
	assert.Equal(t, "/dispatch/services/annotators/", ServicePrefix("annotators"))
	assert.Equal(t, "/dispatch/services/annotators/w-1", WorkerKey("annotators", "w-1"))

	id, ok := WorkerIDFromKey("annotators", "/dispatch/services/annotators/w-1")
	assert.True(t, ok)
	assert.Equal(t, "w-1", id)

	_, ok = WorkerIDFromKey("annotators", "/dispatch/services/other/w-1")
	assert.False(t, ok)
	_, ok = WorkerIDFromKey("annotators", "/dispatch/services/annotators/")
	assert.False(t, ok)
}

func TestMemberSetApply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := memberSet{}

	changed := m.apply("svc", []*clientv3.Event{
		put(WorkerKey("svc", "b"), "10.0.0.2:50052"),
		put(WorkerKey("svc", "a"), "10.0.0.1:50052"),
		put(WorkerKey("other", "z"), "10.0.0.9:50052"),
	}, logger)
	assert.True(t, changed)
	assert.Equal(t, []domain.WorkerHandle{
		{ID: "a", Addr: "10.0.0.1:50052"},
		{ID: "b", Addr: "10.0.0.2:50052"},
	}, m.snapshot())

	// Re-putting the same registration is not a change.
	assert.False(t, m.apply("svc", []*clientv3.Event{put(WorkerKey("svc", "a"), "10.0.0.1:50052")}, logger))

	assert.True(t, m.apply("svc", []*clientv3.Event{del(WorkerKey("svc", "a"))}, logger))
	assert.Equal(t, []domain.WorkerHandle{{ID: "b", Addr: "10.0.0.2:50052"}}, m.snapshot())

	// Deleting an unknown worker is not a change either.
	assert.False(t, m.apply("svc", []*clientv3.Event{del(WorkerKey("svc", "a"))}, logger))
}
