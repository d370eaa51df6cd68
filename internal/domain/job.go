// internal/domain/job.go
package domain

import (
	"context"
	"time"
)

const (
	// OriginRobot tags requests originated by the periodic dispatcher.
	OriginRobot = "workerRobot"

	// ReasonTimedOut is the failure reason recorded when no reply arrives in time.
	ReasonTimedOut = "Processing timed out"
)

// JobRequest is sent to exactly one worker. It is treated as immutable once built.
type JobRequest struct {
	JobID     string    `json:"job_id"`
	OriginTag string    `json:"origin_tag"`
	CreatedAt time.Time `json:"created_at"`
}

// JobReply carries the worker's annotated text.
type JobReply struct {
	Text string `json:"text"`
}

// JobCompleted is produced when a reply arrives before the deadline.
type JobCompleted struct {
	JobID   string
	Worker  WorkerHandle
	Payload string
	Latency time.Duration
}

// JobFailed is produced when the deadline elapses first.
type JobFailed struct {
	JobID  string
	Worker WorkerHandle
	Reason string
}

// JobIDGenerator produces the identifier for each originated job.
type JobIDGenerator interface {
	Next() string
}

// OutcomeHandler receives every resolved job. Implementations report only;
// they never trigger further dispatching.
type OutcomeHandler interface {
	OnCompleted(ctx context.Context, ev JobCompleted)
	OnFailed(ctx context.Context, ev JobFailed)
}

// Transformer is the worker-side contract: annotate the request and reply.
type Transformer interface {
	Transform(ctx context.Context, req JobRequest) (JobReply, error)
}
