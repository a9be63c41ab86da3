package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fentz26/autopilot/internal/auth"
	"github.com/fentz26/autopilot/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v          = viper.New()
	configFile string

	// cfg and logger are set in PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autopilot - manage an agent's autonomous tasks",
	Long: `Autopilot manages the scheduled prompts ("autonomous tasks") attached to an
agent and lets you browse their execution history from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = cfg.NewLogger(os.Stderr)

		if cfg.APIKey == "" {
			if m, err := auth.NewManager(cfg.Dir); err == nil {
				if key, ok := m.APIKey(cfg.APIAddr); ok {
					cfg.APIKey = key
				}
			} else {
				logger.Warn("credentials unavailable", "error", err)
			}
		}
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ~/.autopilot/config.yaml)")
	flags.String("api", "http://127.0.0.1:7466", "Agent API address")
	flags.String("agent", "", "Agent ID whose tasks to manage")
	flags.String("api-key", "", "API key sent as a bearer token")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	v.BindPFlag("api_addr", flags.Lookup("api"))
	v.BindPFlag("agent_id", flags.Lookup("agent"))
	v.BindPFlag("api_key", flags.Lookup("api-key"))
	v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
