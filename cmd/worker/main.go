// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"job-dispatch/internal/app"
	"job-dispatch/internal/cli"
	"job-dispatch/internal/config"
	"job-dispatch/internal/infra/etcd"
	"job-dispatch/internal/worker"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cli.Execute(cli.NewCommand("worker", "Serve transform jobs and register in etcd", "job-dispatch-worker", run))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	workerID := uuid.New().String()
	log.Printf("Starting worker node %s, listening on %s", workerID, cfg.GrpcListenAddr)

	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		return err
	}
	defer etcdClient.Close()
	log.Println("Connected to etcd.")

	registry := worker.NewRegistry(etcdClient, cfg.RegistrationTTL, cfg.RegistrationRetry, logger)
	node, err := app.StartWorker(ctx, cfg, workerID, registry, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.HttpListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	err = node.Wait(ctx)
	log.Println("Shutting down worker node gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	log.Println("Worker node shut down.")
	return err
}
