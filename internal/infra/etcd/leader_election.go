package etcd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"job-dispatch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// LeaderElectionDir holds one election per service key.
	LeaderElectionDir = "/dispatch/leader/"
)

type etcdLeaderElectionManager struct {
	client   *clientv3.Client
	session  *concurrency.Session
	election *concurrency.Election
	isLeader bool
	mutex    sync.Mutex
	nodeID   string
	key      string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewEtcdLeaderElectionManager elects one frontend per service key.
func NewEtcdLeaderElectionManager(client *clientv3.Client, serviceKey, nodeID string, ttl time.Duration, logger *slog.Logger) domain.LeaderElectionManager {
	return &etcdLeaderElectionManager{
		client: client,
		nodeID: nodeID,
		key:    LeaderElectionDir + serviceKey,
		ttl:    ttl,
		logger: logger.With("component", "leader-election"),
	}
}

func (m *etcdLeaderElectionManager) Campaign(ctx context.Context) (<-chan struct{}, error) {
	m.mutex.Lock()
	if m.session != nil {
		// Leftover from a lost term; its lease is gone or about to be.
		_ = m.session.Close()
		m.session, m.election = nil, nil
	}
	m.mutex.Unlock()

	session, err := concurrency.NewSession(m.client, concurrency.WithTTL(int(m.ttl.Seconds())))
	if err != nil {
		return nil, err
	}
	election := concurrency.NewElection(session, m.key)

	// Campaign blocks until this node becomes the leader or the context is canceled.
	if err := election.Campaign(ctx, m.nodeID); err != nil {
		_ = session.Close()
		return nil, err
	}

	m.logger.Info("successfully campaigned and became the leader", "node_id", m.nodeID, "key", m.key)
	m.mutex.Lock()
	m.session, m.election = session, election
	m.isLeader = true
	m.mutex.Unlock()

	// The session's Done channel closes when its lease expires.
	lost := make(chan struct{})
	go func() {
		<-session.Done()
		m.mutex.Lock()
		if m.session == session {
			m.isLeader = false
		}
		m.mutex.Unlock()
		close(lost)
	}()
	return lost, nil
}

func (m *etcdLeaderElectionManager) Resign(ctx context.Context) error {
	m.mutex.Lock()
	election, session := m.election, m.session
	m.isLeader = false
	m.election, m.session = nil, nil
	m.mutex.Unlock()

	if election == nil {
		return nil
	}
	m.logger.Info("resigning leadership", "node_id", m.nodeID)
	err := election.Resign(ctx)
	_ = session.Close()
	return err
}

func (m *etcdLeaderElectionManager) IsLeader() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.isLeader
}
