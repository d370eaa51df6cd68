// cmd/frontend/main.go
package main

import (
	"context"
	"log"
	"log/slog"

	"job-dispatch/internal/app"
	"job-dispatch/internal/cli"
	"job-dispatch/internal/config"
	"job-dispatch/internal/infra/etcd"

	"github.com/google/uuid"
)

func main() {
	cli.Execute(cli.NewCommand("frontend", "Originate jobs and dispatch them to registered workers", "job-dispatch-frontend", run))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	nodeID := uuid.New().String()
	log.Printf("Starting job-dispatch frontend, node ID: %s", nodeID)

	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		return err
	}
	defer etcdClient.Close()
	log.Println("Connected to etcd.")

	deps := app.FrontendDeps{
		Feed: etcd.NewMembershipFeed(etcdClient, cfg.EtcdTimeout, cfg.WatchRetry, logger),
	}
	if cfg.LeaderElection {
		deps.Leader = etcd.NewEtcdLeaderElectionManager(etcdClient, cfg.ServiceKey, nodeID, cfg.LeaderElectionTTL, logger)
	}

	if err := app.RunFrontend(ctx, cfg, nodeID, deps, logger); err != nil {
		return err
	}
	log.Println("Frontend shut down.")
	return nil
}
