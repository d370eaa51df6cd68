// internal/master/transport.go
package master

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/rpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GrpcTransport sends jobs to workers over gRPC, reusing one connection per
// worker address.
type GrpcTransport struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	clients  map[string]*rpc.WorkerClient
	dialOpts []grpc.DialOption
	logger   *slog.Logger
}

// NewGrpcTransport creates a transport. Extra dial options are appended to
// the defaults (insecure credentials, OpenTelemetry stats handler).
func NewGrpcTransport(logger *slog.Logger, opts ...grpc.DialOption) *GrpcTransport {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		// Add OpenTelemetry Stats Handler for automatic trace propagation.
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	return &GrpcTransport{
		conns:    make(map[string]*grpc.ClientConn),
		clients:  make(map[string]*rpc.WorkerClient),
		dialOpts: append(dialOpts, opts...),
		logger:   logger.With("component", "grpc-transport"),
	}
}

var _ domain.WorkerTransport = (*GrpcTransport)(nil)

// Send calls Transform on worker.
func (t *GrpcTransport) Send(ctx context.Context, worker domain.WorkerHandle, req domain.JobRequest) (domain.JobReply, error) {
	client, err := t.getOrCreateClient(worker.Addr)
	if err != nil {
		return domain.JobReply{}, err
	}
	return client.Transform(ctx, req)
}

func (t *GrpcTransport) getOrCreateClient(addr string) (*rpc.WorkerClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// If client already exists in cache, return it.
	if client, ok := t.clients[addr]; ok {
		return client, nil
	}

	conn, err := grpc.NewClient(addr, t.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worker at %s: %w", addr, err)
	}

	client := rpc.NewWorkerClient(conn)
	t.conns[addr] = conn
	t.clients[addr] = client
	t.logger.Info("created new gRPC client for worker", "addr", addr)

	return client, nil
}

// Retain closes connections to addresses no longer present in workers.
func (t *GrpcTransport) Retain(workers []domain.WorkerHandle) {
	keep := make(map[string]struct{}, len(workers))
	for _, w := range workers {
		keep[w.Addr] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, conn := range t.conns {
		if _, ok := keep[addr]; ok {
			continue
		}
		if err := conn.Close(); err != nil {
			t.logger.Warn("failed to close worker connection", "addr", addr, "error", err)
		}
		delete(t.conns, addr)
		delete(t.clients, addr)
		t.logger.Info("dropped gRPC client for departed worker", "addr", addr)
	}
}

// Close closes every cached connection.
func (t *GrpcTransport) Close() error {
	t.Retain(nil)
	return nil
}
