package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campus-events/server/internal/config"
)

var (
	// Global flags
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Teacher portal server - campus events with admin portal sync",
		Long: `The teacher portal server stores campus events created by teachers and
keeps the admin portal in step with them.

The server supports:
- Event creation, submission and cancellation over a JSON API
- Best-effort push of new events to the admin portal
- Scheduled reconciliation of events the admin portal never received
- Approval decisions from the admin portal via webhook, with email notices`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML file of environment keys (optional, env vars take precedence)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newReconcileCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env, then the optional YAML file, then the environment.
// Flags override the result.
func loadConfig() (config.Config, error) {
	if envFile != "" {
		config.LoadEnvFile(envFile)
	}
	if configPath != "" {
		if err := config.LoadFile(configPath); err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}
