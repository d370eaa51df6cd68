// internal/infra/etcd/membership_feed.go
package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"job-dispatch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MembershipFeed turns the registrations under a service prefix into a stream
// of full membership snapshots.
type MembershipFeed struct {
	client      *clientv3.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	loadTimeout time.Duration
	retry       time.Duration
}

// NewMembershipFeed creates a feed backed by etcd. retry is the delay between
// re-list attempts after the watch breaks.
func NewMembershipFeed(client *clientv3.Client, loadTimeout, retry time.Duration, logger *slog.Logger) *MembershipFeed {
	return &MembershipFeed{
		client:      client,
		logger:      logger.With("component", "etcd-membership-feed"),
		tracer:      otel.Tracer("job-dispatch-etcd-feed"),
		loadTimeout: loadTimeout,
		retry:       retry,
	}
}

// Subscribe loads the current registrations, emits them as the first snapshot
// and then emits a new snapshot after every change observed by the watch.
// On watch errors (compaction, lost leader) the feed re-lists and resumes.
func (f *MembershipFeed) Subscribe(ctx context.Context, serviceKey string) (<-chan []domain.WorkerHandle, error) {
	members, rev, err := f.load(ctx, serviceKey)
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.WorkerHandle, 1)
	out <- members.snapshot()
	go f.watch(ctx, serviceKey, members, rev, out)
	return out, nil
}

func (f *MembershipFeed) load(ctx context.Context, serviceKey string) (memberSet, int64, error) {
	ctx, span := f.tracer.Start(ctx, "feed.etcd.Load")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.loadTimeout)
	defer cancel()

	prefix := ServicePrefix(serviceKey)
	span.SetAttributes(attribute.String("etcd.prefix", prefix))

	resp, err := f.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list workers from etcd")
		return nil, 0, fmt.Errorf("failed to list workers under %s: %w", prefix, err)
	}

	members := make(memberSet, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id, ok := WorkerIDFromKey(serviceKey, string(kv.Key))
		if !ok {
			continue
		}
		f.logger.Info("found existing worker", "id", id, "addr", string(kv.Value))
		members[id] = string(kv.Value)
	}
	span.SetAttributes(attribute.Int("etcd.kv_count", len(resp.Kvs)))
	return members, resp.Header.Revision, nil
}

func (f *MembershipFeed) watch(ctx context.Context, serviceKey string, members memberSet, rev int64, out chan<- []domain.WorkerHandle) {
	defer close(out)
	f.logger.Info("starting to watch for workers", "service_key", serviceKey)

	send := func(snapshot []domain.WorkerHandle) bool {
		select {
		case out <- snapshot:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		wctx, cancel := context.WithCancel(clientv3.WithRequireLeader(ctx))
		watchChan := f.client.Watch(wctx, ServicePrefix(serviceKey), clientv3.WithPrefix(), clientv3.WithRev(rev+1))

		for watchResp := range watchChan {
			if err := watchResp.Err(); err != nil {
				f.logger.Warn("worker watch interrupted", "error", err)
				break
			}
			if members.apply(serviceKey, watchResp.Events, f.logger) {
				if !send(members.snapshot()) {
					cancel()
					return
				}
			}
			rev = watchResp.Header.Revision
		}
		cancel()

		if ctx.Err() != nil {
			f.logger.Info("stopped watching for workers")
			return
		}

		// Resync from a fresh listing; anything missed while the watch was down
		// is folded into one replacement snapshot.
		for {
			fresh, freshRev, err := f.load(ctx, serviceKey)
			if err == nil {
				members, rev = fresh, freshRev
				if !send(members.snapshot()) {
					return
				}
				break
			}
			f.logger.Error("failed to resync workers", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.retry):
			}
		}
	}
}

// memberSet maps worker ID to address.
type memberSet map[string]string

// apply folds watch events into the set and reports whether it changed.
func (m memberSet) apply(serviceKey string, events []*clientv3.Event, logger *slog.Logger) bool {
	changed := false
	for _, event := range events {
		id, ok := WorkerIDFromKey(serviceKey, string(event.Kv.Key))
		if !ok {
			continue
		}
		switch event.Type {
		case clientv3.EventTypePut:
			addr := string(event.Kv.Value)
			if old, ok := m[id]; ok && old == addr {
				continue
			}
			logger.Info("new worker discovered", "id", id, "addr", addr)
			m[id] = addr
			changed = true
		case clientv3.EventTypeDelete:
			if _, ok := m[id]; !ok {
				continue
			}
			// A worker deregistered (lease expired or graceful shutdown)
			logger.Info("worker deregistered", "id", id, "addr", m[id])
			delete(m, id)
			changed = true
		}
	}
	return changed
}

func (m memberSet) snapshot() []domain.WorkerHandle {
	handles := make([]domain.WorkerHandle, 0, len(m))
	for id, addr := range m {
		handles = append(handles, domain.WorkerHandle{ID: id, Addr: addr})
	}
	return domain.NormalizeWorkerSet(handles)
}
