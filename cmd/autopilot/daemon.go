package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/autopilot/internal/container"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the local agent API daemon",
	Long: `Starts a local agent API on SQLite. It stores agents, their autonomous
tasks and execution records, and serves them over the same REST API the CLI
and TUI use. It does not execute tasks.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("listen", "127.0.0.1:7466", "Listen address for the API server")
	daemonCmd.Flags().String("db", "", "Path to SQLite database (default ~/.autopilot/autopilot.db)")

	v.BindPFlag("listen", daemonCmd.Flags().Lookup("listen"))
	v.BindPFlag("db_path", daemonCmd.Flags().Lookup("db"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger.Info("starting autopilot daemon", "db", cfg.DBPath)

	d, err := container.NewDaemon(cfg, logger)
	if err != nil {
		return err
	}
	server := d.Server()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			d.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("closing database")
	if err := d.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
