// internal/cli/cli.go
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"job-dispatch/internal/config"
	"job-dispatch/internal/tracing"

	"github.com/spf13/cobra"
)

// Runner is the body of a process once config, logging and tracing are set up.
type Runner func(ctx context.Context, cfg *config.Config, logger *slog.Logger) error

// NewCommand builds a root command with the flags shared by every process.
// Flags override the config file and environment variables such as
// TICK_INTERVAL.
func NewCommand(use, short, serviceName string, run Runner) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)

			var traceOut io.Writer
			if cfg.TraceStdout {
				traceOut = os.Stdout
			}
			tracerShutdown, err := tracing.InitTracer(serviceName, traceOut)
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerShutdown(context.Background()); err != nil {
					log.Printf("failed to shutdown tracer: %v", err)
				}
			}()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			setupGracefulShutdown(cancel)

			return run(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "config file path (default: ./configs/config.yaml or ./config.yaml)")
	f.StringSlice("etcd-endpoints", nil, "etcd endpoints")
	f.String("service-key", "", "service key workers register under")
	f.Duration("tick-interval", 0, "delay between dispatch ticks")
	f.Duration("job-timeout", 0, "how long a job may wait for its reply")
	f.String("http-listen-addr", "", "status API and metrics listen address")
	f.String("grpc-listen-addr", "", "worker gRPC listen address")
	f.String("advertise-addr", "", "address a worker publishes in discovery")
	f.Bool("leader-election", false, "only originate jobs while holding etcd leadership")
	f.Duration("processing-delay", 0, "simulated worker processing time")
	f.Bool("trace-stdout", false, "export trace spans to stdout")
	f.String("log-level", "", "debug, info, warn or error")
	f.Int("demo-workers", 0, "number of in-process workers (demo only)")
	return cmd
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("%s: %v", cmd.Name(), err)
	}
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
