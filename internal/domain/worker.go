// internal/domain/worker.go
package domain

import (
	"context"
	"sort"
)

// WorkerHandle identifies one worker instance. Two handles are the same worker
// only if both fields match.
type WorkerHandle struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

func (h WorkerHandle) String() string {
	return h.ID + "@" + h.Addr
}

// NormalizeWorkerSet returns a deduplicated copy of set ordered by ID, then Addr.
// The ordering is what makes round-robin selection reproducible for a given membership.
func NormalizeWorkerSet(set []WorkerHandle) []WorkerHandle {
	seen := make(map[WorkerHandle]struct{}, len(set))
	out := make([]WorkerHandle, 0, len(set))
	for _, h := range set {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

// WorkerDirectory is the read side the dispatcher consults on every tick.
type WorkerDirectory interface {
	Snapshot() []WorkerHandle
}

// MembershipFeed delivers full membership snapshots for a service key, in the
// order the backend observed them. The channel is closed when ctx is done.
type MembershipFeed interface {
	Subscribe(ctx context.Context, serviceKey string) (<-chan []WorkerHandle, error)
}

// Registrar is the worker-side half of discovery.
type Registrar interface {
	Register(ctx context.Context, serviceKey string, self WorkerHandle) error
	Deregister(ctx context.Context) error
}
