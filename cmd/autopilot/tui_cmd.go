package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/fentz26/autopilot/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

var noAutostart bool

func init() {
	tuiCmd.Flags().BoolVar(&noAutostart, "no-autostart", false, "Do not start a local daemon when the API is unreachable")
}

func runTUI(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireAgent(); err != nil {
		return err
	}

	if !isDaemonRunning(cmd.Context()) {
		if noAutostart || !isLocal(cfg.APIAddr) {
			return fmt.Errorf("agent API not reachable at %s", cfg.APIAddr)
		}
		fmt.Println("⚡ Autopilot daemon not running. Starting background service...")
		if err := startDaemon(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	// Logging to the terminal would corrupt the alt screen.
	logFile, err := cfg.OpenLogFile("tui.log")
	if err != nil {
		return err
	}
	defer logFile.Close()
	tuiLogger := cfg.NewLogger(logFile)

	o := newOrchestrator()
	app := tui.New(o, tuiLogger, cfg.Timeout)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err := newClient().CheckHealth(ctx)
	return err == nil
}

func isLocal(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}

func startDaemon(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	u, _ := url.Parse(cfg.APIAddr)
	args := []string{"daemon", "--listen", u.Host, "--db", cfg.DBPath}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	cmd := exec.Command(exe, args...)
	configureDaemonProc(cmd)

	logFile, err := cfg.OpenLogFile("daemon.log")
	if err != nil {
		return err
	}
	defer logFile.Close()
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning(ctx) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", cfg.APIAddr)
}
