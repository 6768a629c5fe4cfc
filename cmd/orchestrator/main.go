package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taylored/runnerd/pkg/api"
	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/docker"
	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/metrics"
	"github.com/taylored/runnerd/pkg/orchestrator"
	"github.com/taylored/runnerd/pkg/registry"
	"github.com/taylored/runnerd/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Orchestrator - session-scoped runner container control plane",
	Long: `Orchestrator provisions one runner container per client session,
keeps it alive while heartbeats arrive, and reaps it when the session
goes idle. The HTTP API drives provisioning; the runner containers
themselves serve snippet execution over a websocket channel.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Orchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadOrchestrator(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := log.WithComponent("main")
	logger.Info().
		Str("version", Version).
		Int("port", cfg.Port).
		Bool("reuse_mode", cfg.ReuseRunnerMode).
		Msg("starting orchestrator")

	metrics.SetVersion(Version)
	metrics.SetCriticalComponents("docker", "store")

	driver, err := docker.NewClient(ctx, cfg.DockerHost)
	if err != nil {
		metrics.RegisterComponent("docker", false, err.Error())
		return fmt.Errorf("failed to connect to container daemon: %v", err)
	}
	defer func() { _ = driver.Close() }()
	metrics.RegisterComponent("docker", true, "connected")

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		metrics.RegisterComponent("store", false, err.Error())
		return fmt.Errorf("failed to open journal: %v", err)
	}
	defer func() { _ = store.Close() }()
	metrics.RegisterComponent("store", true, "open")

	reg := registry.New(cfg.ReuseRunnerMode)
	orch := orchestrator.New(cfg, reg, driver, store)

	// Containers left over from a previous process have no registry record
	// and would never be reaped; sweep them before accepting requests.
	orch.Reconcile(ctx)

	server := api.NewServer(orch)
	reaper := orchestrator.NewReaper(orch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("orchestrator stopped")
	return err
}
