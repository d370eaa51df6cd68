package http

import (
	"time"

	"job-dispatch/internal/domain"
)

// WorkerResponse is one entry of GET /workers.
type WorkerResponse struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// WorkersResponse is the body of GET /workers.
type WorkersResponse struct {
	Count   int              `json:"count"`
	Workers []WorkerResponse `json:"workers"`
}

// DispatcherResponse is the body of GET /dispatcher.
type DispatcherResponse struct {
	State         string     `json:"state"`
	Dispatched    uint64     `json:"dispatched"`
	PendingJobID  string     `json:"pending_job_id,omitempty"`
	PendingWorker string     `json:"pending_worker,omitempty"`
	PendingSince  *time.Time `json:"pending_since,omitempty"`
	Leader        *bool      `json:"leader,omitempty"`
}

// ToWorkersResponse converts a directory snapshot.
func ToWorkersResponse(set []domain.WorkerHandle) WorkersResponse {
	resp := WorkersResponse{Count: len(set), Workers: make([]WorkerResponse, 0, len(set))}
	for _, w := range set {
		resp.Workers = append(resp.Workers, WorkerResponse{ID: w.ID, Addr: w.Addr})
	}
	return resp
}

// ToDispatcherResponse converts a dispatcher status. A nil leader means
// leader election is off and the field is omitted.
func ToDispatcherResponse(st domain.DispatcherStatus, leader domain.LeaderElectionManager) DispatcherResponse {
	resp := DispatcherResponse{
		State:         st.State,
		Dispatched:    st.Dispatched,
		PendingJobID:  st.PendingJobID,
		PendingWorker: st.PendingWorker,
		PendingSince:  st.PendingSince,
	}
	if leader != nil {
		leading := leader.IsLeader()
		resp.Leader = &leading
	}
	return resp
}
