// Indexd is the tenant content indexing daemon.
//
// It assembles the chunk-embed-store pipeline, starts the scheduled
// incremental indexing loop and serves rebuild jobs until terminated.
//
// Usage:
//
//	# Start with defaults (~/.config/indexd/config.yaml if present)
//	indexd
//
//	# Start with an explicit config file
//	indexd -config /etc/indexd/config.yaml
//
//	# Configure via environment
//	LOGGING_LEVEL=debug STORAGE_DATA_DIR=/var/lib/indexd indexd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/logging"
	"github.com/fyrsmithlabs/indexd/internal/services"
	"github.com/fyrsmithlabs/indexd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  indexd           Start the indexing daemon\n")
			fmt.Fprintf(os.Stderr, "  indexd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("indexd error: %v", err)
	}
	log.Println("Shutdown complete")
}

func printVersion() {
	fmt.Printf("indexd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run assembles the pipeline and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = version
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	// Source providers are wired by the embedding application; the
	// standalone daemon starts with the externally-driven playbook
	// indexer only.
	svc, err := services.New(cfg, services.Sources{}, logger)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}
	defer svc.Close()

	svc.Scheduler().Start(ctx)
	logger.Info("indexd started",
		zap.String("version", version),
		zap.Duration("scheduler_interval", cfg.Scheduler.Interval))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
