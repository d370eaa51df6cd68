// internal/worker/registry.go
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/infra/etcd"
	"job-dispatch/internal/metrics"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Registry keeps a worker registered in etcd under a leased key. If the lease
// is lost while the worker is still running (etcd restart, network partition
// longer than the TTL) it registers again with a fresh lease.
type Registry struct {
	client *clientv3.Client
	logger *slog.Logger
	ttl    time.Duration
	retry  time.Duration

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	key     string
	value   string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry creates a new worker registry.
func NewRegistry(client *clientv3.Client, ttl, retry time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger.With("component", "worker-registry"),
		ttl:    ttl,
		retry:  retry,
	}
}

var _ domain.Registrar = (*Registry)(nil)

// Register publishes self under serviceKey and keeps the lease alive until
// Deregister is called.
func (r *Registry) Register(ctx context.Context, serviceKey string, self domain.WorkerHandle) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return fmt.Errorf("worker %s is already registered", self.ID)
	}
	r.key = etcd.WorkerKey(serviceKey, self.ID)
	r.value = self.Addr
	r.mu.Unlock()

	// The keep-alive stream must outlive ctx, which only bounds the first attempt.
	runCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := r.register(ctx, runCtx)
	if err != nil {
		cancel()
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return err
	}

	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.maintain(runCtx, keepAliveCh, done)
	return nil
}

// register grants a lease, writes the key and starts keep-alives bound to runCtx.
func (r *Registry) register(ctx, runCtx context.Context) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	leaseResp, err := r.client.Grant(ctx, int64(r.ttl.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to grant lease: %w", err)
	}

	if _, err := r.client.Put(ctx, r.key, r.value, clientv3.WithLease(leaseResp.ID)); err != nil {
		return nil, fmt.Errorf("failed to put worker registration key: %w", err)
	}

	keepAliveCh, err := r.client.KeepAlive(runCtx, leaseResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to start keep-alive: %w", err)
	}

	r.mu.Lock()
	r.leaseID = leaseResp.ID
	r.mu.Unlock()

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("worker registered successfully", "key", r.key, "value", r.value, "lease_id", leaseResp.ID)
	return keepAliveCh, nil
}

func (r *Registry) maintain(runCtx context.Context, keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse, done chan struct{}) {
	defer close(done)
	for {
		for ka := range keepAliveCh {
			r.logger.Debug("lease keep-alive refreshed", "lease_id", ka.ID, "ttl", ka.TTL)
		}
		if runCtx.Err() != nil {
			return
		}
		r.logger.Warn("keep-alive channel closed, registering again")

		for {
			select {
			case <-runCtx.Done():
				return
			case <-time.After(r.retry):
			}
			attemptCtx, cancel := context.WithTimeout(runCtx, r.ttl)
			ch, err := r.register(attemptCtx, runCtx)
			cancel()
			if err == nil {
				keepAliveCh = ch
				break
			}
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			r.logger.Error("failed to re-register worker", "error", err)
		}
	}
}

// Deregister stops keep-alives and revokes the lease, which deletes the key.
func (r *Registry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	r.mu.Lock()
	leaseID := r.leaseID
	r.mu.Unlock()

	r.logger.Info("deregistering worker", "key", r.key)
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}
