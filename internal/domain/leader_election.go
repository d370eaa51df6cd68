package domain

import "context"

// LeaderElectionManager gates which frontend originates jobs when several run
// against the same worker pool.
type LeaderElectionManager interface {
	// Campaign blocks until this node leads. The returned channel is closed
	// when leadership is lost.
	Campaign(ctx context.Context) (<-chan struct{}, error)
	Resign(ctx context.Context) error
	IsLeader() bool
}
