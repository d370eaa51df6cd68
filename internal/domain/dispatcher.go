// internal/domain/dispatcher.go
package domain

import (
	"context"
	"time"
)

// WorkerTransport delivers a request to one worker and waits for its reply.
// Any error means the reply will never arrive through this call.
type WorkerTransport interface {
	Send(ctx context.Context, worker WorkerHandle, req JobRequest) (JobReply, error)
}

// Ticker is anything that can be poked by a scheduler to originate work.
type Ticker interface {
	Tick()
}

// Dispatcher states reported by Status.
const (
	StateIdle     = "idle"
	StateAwaiting = "awaiting"
)

// DispatcherStatus is a point-in-time view of the dispatcher.
type DispatcherStatus struct {
	State         string     `json:"state"`
	Dispatched    uint64     `json:"dispatched"`
	PendingJobID  string     `json:"pending_job_id,omitempty"`
	PendingWorker string     `json:"pending_worker,omitempty"`
	PendingSince  *time.Time `json:"pending_since,omitempty"`
}
