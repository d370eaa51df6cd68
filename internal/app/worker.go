// internal/app/worker.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"job-dispatch/internal/config"
	"job-dispatch/internal/domain"
	"job-dispatch/internal/rpc"
	"job-dispatch/internal/worker"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// WorkerNode is a running worker: a gRPC Transform server registered in
// discovery.
type WorkerNode struct {
	Handle domain.WorkerHandle

	server    *grpc.Server
	registrar domain.Registrar
	serveErr  chan error
	logger    *slog.Logger
}

// StartWorker listens on cfg.GrpcListenAddr, serves Transform and registers
// the worker under cfg.ServiceKey.
func StartWorker(ctx context.Context, cfg *config.Config, workerID string, registrar domain.Registrar, logger *slog.Logger) (*WorkerNode, error) {
	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GrpcListenAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	rpc.RegisterWorkerServer(grpcServer, worker.NewServer(workerID, cfg.ProcessingDelay, logger))

	n := &WorkerNode{
		Handle:    domain.WorkerHandle{ID: workerID, Addr: advertisedAddr(cfg, lis.Addr())},
		server:    grpcServer,
		registrar: registrar,
		serveErr:  make(chan error, 1),
		logger:    logger.With("component", "worker-node", "worker_id", workerID),
	}
	go func() { n.serveErr <- grpcServer.Serve(lis) }()
	n.logger.Info("gRPC server listening", "addr", lis.Addr().String(), "advertise", n.Handle.Addr)

	regCtx, cancel := context.WithTimeout(ctx, cfg.EtcdTimeout)
	defer cancel()
	if err := registrar.Register(regCtx, cfg.ServiceKey, n.Handle); err != nil {
		grpcServer.Stop()
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}
	return n, nil
}

// Wait blocks until ctx is done or the server fails, then stops the worker.
func (n *WorkerNode) Wait(ctx context.Context) error {
	var err error
	select {
	case <-ctx.Done():
	case err = <-n.serveErr:
		err = fmt.Errorf("gRPC server failed: %w", err)
	}
	n.Stop()
	return err
}

// Stop deregisters first so the frontend stops selecting this worker, then
// drains in-flight calls.
func (n *WorkerNode) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := n.registrar.Deregister(ctx); err != nil {
		n.logger.Error("failed to deregister worker", "error", err)
	}
	n.server.GracefulStop()
	n.logger.Info("worker stopped")
}

// advertisedAddr prefers advertise_addr; otherwise the bound port on
// localhost, which also covers ":0" listeners.
func advertisedAddr(cfg *config.Config, bound net.Addr) string {
	if cfg.AdvertiseAddr != "" {
		return cfg.AdvertiseAddr
	}
	if tcp, ok := bound.(*net.TCPAddr); ok {
		c := *cfg
		c.GrpcListenAddr = net.JoinHostPort(hostOf(cfg.GrpcListenAddr), fmt.Sprint(tcp.Port))
		return c.WorkerAddr()
	}
	return cfg.WorkerAddr()
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return host
}
