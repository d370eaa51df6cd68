// Package memory provides an in-process discovery backend. A single Registry
// acts as both the membership feed for frontends and the registrar for workers
// living in the same process.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"job-dispatch/internal/domain"
)

// Registry is a publish/subscribe membership registry keyed by service key.
type Registry struct {
	mu          sync.Mutex
	members     map[string]map[domain.WorkerHandle]struct{}
	subscribers map[string]map[*subscriber]struct{}
	logger      *slog.Logger
}

// subscriber holds at most one undelivered snapshot. A newer snapshot replaces
// an undelivered one, since each snapshot is a full replacement.
type subscriber struct {
	ch chan []domain.WorkerHandle
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		members:     make(map[string]map[domain.WorkerHandle]struct{}),
		subscribers: make(map[string]map[*subscriber]struct{}),
		logger:      logger.With("component", "memory-registry"),
	}
}

var _ domain.MembershipFeed = (*Registry)(nil)

// Subscribe returns a channel that immediately yields the current membership
// and then every subsequent change. It is closed when ctx is done.
func (r *Registry) Subscribe(ctx context.Context, serviceKey string) (<-chan []domain.WorkerHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{ch: make(chan []domain.WorkerHandle, 1)}

	r.mu.Lock()
	if r.subscribers[serviceKey] == nil {
		r.subscribers[serviceKey] = make(map[*subscriber]struct{})
	}
	r.subscribers[serviceKey][sub] = struct{}{}
	sub.ch <- r.snapshotLocked(serviceKey)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subscribers[serviceKey], sub)
		close(sub.ch)
		r.mu.Unlock()
	}()
	return sub.ch, nil
}

// Join adds a worker and publishes the new membership.
func (r *Registry) Join(serviceKey string, h domain.WorkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[serviceKey] == nil {
		r.members[serviceKey] = make(map[domain.WorkerHandle]struct{})
	}
	r.members[serviceKey][h] = struct{}{}
	r.logger.Info("worker joined", "service_key", serviceKey, "worker", h.String())
	r.publishLocked(serviceKey)
}

// Leave removes a worker and publishes the new membership.
func (r *Registry) Leave(serviceKey string, h domain.WorkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[serviceKey][h]; !ok {
		return
	}
	delete(r.members[serviceKey], h)
	r.logger.Info("worker left", "service_key", serviceKey, "worker", h.String())
	r.publishLocked(serviceKey)
}

func (r *Registry) snapshotLocked(serviceKey string) []domain.WorkerHandle {
	set := make([]domain.WorkerHandle, 0, len(r.members[serviceKey]))
	for h := range r.members[serviceKey] {
		set = append(set, h)
	}
	return domain.NormalizeWorkerSet(set)
}

func (r *Registry) publishLocked(serviceKey string) {
	for sub := range r.subscribers[serviceKey] {
		// Only publishers send, and only under r.mu, so after draining a stale
		// snapshot the send below cannot block.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- r.snapshotLocked(serviceKey)
	}
}

// Registrar returns a domain.Registrar bound to this registry, for one worker.
func (r *Registry) Registrar() *Registrar {
	return &Registrar{registry: r}
}

// Registrar registers a single worker in a memory Registry.
type Registrar struct {
	registry   *Registry
	mu         sync.Mutex
	serviceKey string
	self       *domain.WorkerHandle
}

var _ domain.Registrar = (*Registrar)(nil)

func (g *Registrar) Register(_ context.Context, serviceKey string, self domain.WorkerHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.self != nil {
		return fmt.Errorf("worker %s is already registered", g.self.ID)
	}
	g.serviceKey, g.self = serviceKey, &self
	g.registry.Join(serviceKey, self)
	return nil
}

func (g *Registrar) Deregister(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.self == nil {
		return nil
	}
	g.registry.Leave(g.serviceKey, *g.self)
	g.self = nil
	return nil
}
