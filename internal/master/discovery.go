// internal/master/discovery.go
package master

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"
)

// WorkerDiscovery tracks the workers registered under one service key.
type WorkerDiscovery struct {
	feed       domain.MembershipFeed
	serviceKey string
	logger     *slog.Logger

	mu         sync.RWMutex
	workers    []domain.WorkerHandle
	subscribed bool
	listeners  []func([]domain.WorkerHandle)
}

// NewWorkerDiscovery creates a directory fed by feed.
func NewWorkerDiscovery(feed domain.MembershipFeed, serviceKey string, logger *slog.Logger) *WorkerDiscovery {
	return &WorkerDiscovery{
		feed:       feed,
		serviceKey: serviceKey,
		logger:     logger.With("component", "worker-discovery"),
	}
}

// OnChange registers fn to be called with every new membership, after it
// has been applied. Register listeners before Subscribe.
func (d *WorkerDiscovery) OnChange(fn func([]domain.WorkerHandle)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Subscribe establishes the standing subscription. It may be called once; the
// consuming goroutine stops when ctx is done or the feed closes.
func (d *WorkerDiscovery) Subscribe(ctx context.Context) error {
	d.mu.Lock()
	if d.subscribed {
		d.mu.Unlock()
		return domain.ErrAlreadySubscribed
	}
	d.subscribed = true
	d.mu.Unlock()

	updates, err := d.feed.Subscribe(ctx, d.serviceKey)
	if err != nil {
		d.mu.Lock()
		d.subscribed = false
		d.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", d.serviceKey, err)
	}

	d.logger.Info("subscribed to worker membership", "service_key", d.serviceKey)
	go func() {
		for set := range updates {
			d.OnMembershipChanged(set)
		}
		d.logger.Info("worker membership feed closed", "service_key", d.serviceKey)
	}()
	return nil
}

// OnMembershipChanged replaces the known workers with newSet. Last write wins.
func (d *WorkerDiscovery) OnMembershipChanged(newSet []domain.WorkerHandle) {
	workers := domain.NormalizeWorkerSet(newSet)

	d.mu.Lock()
	d.workers = workers
	listeners := d.listeners
	d.mu.Unlock()

	metrics.WorkersAvailable.Set(float64(len(workers)))

	ids := make([]string, len(workers))
	for i, w := range workers {
		ids[i] = w.String()
	}
	d.logger.Info("worker membership changed", "count", len(workers), "workers", ids)

	for _, fn := range listeners {
		fn(d.Snapshot())
	}
}

// Snapshot returns a copy of the current workers in deterministic order.
func (d *WorkerDiscovery) Snapshot() []domain.WorkerHandle {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.WorkerHandle, len(d.workers))
	copy(out, d.workers)
	return out
}
