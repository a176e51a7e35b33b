package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/statekit/internal/config"
	"github.com/aretw0/statekit/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "statekit",
	Short: "statekit serves and inspects change-detecting state stores",
	Long: `statekit runs a document store whose actions report exactly what they changed.
It serves the store over HTTP (with a server-sent event stream of deltas) or MCP,
journals deltas to Redis, and diffs YAML or JSON documents from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errDifferent signals a non-empty diff with --exit-code.
var errDifferent = errors.New("documents differ")

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errDifferent) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a statekit.yaml configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
}

// loadConfig reads the configuration and builds the logger, applying flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level), nil
}
