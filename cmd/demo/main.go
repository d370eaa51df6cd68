// cmd/demo/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"job-dispatch/internal/app"
	"job-dispatch/internal/cli"
	"job-dispatch/internal/config"
	"job-dispatch/internal/infra/memory"
)

func main() {
	cli.Execute(cli.NewCommand("demo", "Run a frontend and several workers in one process", "job-dispatch-demo", run))
}

// run starts demo_workers workers on ephemeral localhost ports and a frontend
// that discovers them through an in-process registry.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := memory.NewRegistry(logger)

	workerCfg := *cfg
	workerCfg.GrpcListenAddr = "127.0.0.1:0"
	workerCfg.AdvertiseAddr = ""

	nodes := make([]*app.WorkerNode, 0, cfg.DemoWorkers)
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()
	for i := 1; i <= cfg.DemoWorkers; i++ {
		node, err := app.StartWorker(ctx, &workerCfg, fmt.Sprintf("worker-%d", i), registry.Registrar(), logger)
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
	}
	log.Printf("Started %d demo workers.", len(nodes))

	if err := app.RunFrontend(ctx, cfg, "demo", app.FrontendDeps{Feed: registry}, logger); err != nil {
		return err
	}
	log.Println("Demo shut down.")
	return nil
}
