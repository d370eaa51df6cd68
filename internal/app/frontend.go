// internal/app/frontend.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	http_api "job-dispatch/internal/api/http"
	"job-dispatch/internal/config"
	"job-dispatch/internal/domain"
	"job-dispatch/internal/jobid"
	"job-dispatch/internal/master"
	"job-dispatch/internal/outcome"
	"job-dispatch/internal/scheduler"
	"job-dispatch/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FrontendDeps are the pluggable parts of a frontend. Feed is required.
type FrontendDeps struct {
	Feed domain.MembershipFeed
	// Leader gates the scheduler when set.
	Leader domain.LeaderElectionManager
	// Outcomes defaults to a log and metrics reporter.
	Outcomes domain.OutcomeHandler
	// IDs defaults to the process-wide random job id generator.
	IDs domain.JobIDGenerator
}

// RunFrontend wires and runs the dispatching side until ctx is done.
func RunFrontend(ctx context.Context, cfg *config.Config, nodeID string, deps FrontendDeps, logger *slog.Logger) error {
	if deps.Outcomes == nil {
		deps.Outcomes = outcome.NewLogHandler(logger)
	}
	if deps.IDs == nil {
		gen, err := jobid.NewGenerator(cfg.JobIDLower, cfg.JobIDUpper, nil)
		if err != nil {
			return fmt.Errorf("failed to create job id generator: %w", err)
		}
		deps.IDs = gen
	}

	discovery := master.NewWorkerDiscovery(deps.Feed, cfg.ServiceKey, logger)
	transport := master.NewGrpcTransport(logger)
	defer transport.Close()
	discovery.OnChange(transport.Retain)

	dispatcher := master.NewDispatcher(discovery, transport, deps.IDs, deps.Outcomes, master.DispatcherConfig{
		JobTimeout: cfg.JobTimeout,
		OriginTag:  domain.OriginRobot,
	}, logger)

	cronScheduler, err := scheduler.NewCronScheduler(dispatcher, cfg.TickInterval, logger)
	if err != nil {
		return err
	}
	schedulerService := usecase.NewSchedularService(deps.Leader, cronScheduler, nodeID, cfg.LeaderElectionRetry, logger)

	// The directory must be live before the first tick.
	if err := discovery.Subscribe(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	http_api.NewStatusHandler(discovery, dispatcher, deps.Leader, logger).RegisterRoutes(mux)

	lis, err := net.Listen("tcp", cfg.HttpListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HttpListenAddr, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("status API listening", "addr", lis.Addr().String())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	run(func() error { return ignoreCanceled(dispatcher.Run(runCtx)) })
	run(func() error { return ignoreCanceled(schedulerService.Start(runCtx)) })
	run(func() error {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	<-runCtx.Done()
	logger.Info("shutting down frontend")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
