package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taylored/runnerd/pkg/agent"
	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "runner",
	Short: "Runner - in-container snippet execution agent",
	Long: `Runner is the agent that lives inside each provisioned container.
It serves a websocket channel over which clients execute taylored
snippets, browse the container filesystem, and download files.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.LoadRunner(ctx)
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
			Str("root", cfg.ContainerRoot).
			Msg("starting runner agent")

		if err := agent.NewServer(cfg).Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info().Msg("runner agent stopped")
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Runner version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
}
