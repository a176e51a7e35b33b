package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/statekit/internal/cli"
	"github.com/aretw0/statekit/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts a document store as an MCP Server.
Every action becomes a tool taking a JSON payload, and the state is exposed as the
statekit://state resource. With --agent, only the actions granted to that agent in
the configuration are exposed.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("transport") {
			cfg.MCP.Transport, _ = cmd.Flags().GetString("transport")
		}
		if cmd.Flags().Changed("listen") {
			cfg.MCP.Listen, _ = cmd.Flags().GetString("listen")
		}
		if cmd.Flags().Changed("agent") {
			cfg.MCP.Agent, _ = cmd.Flags().GetString("agent")
		}
		restore, _ := cmd.Flags().GetBool("restore")

		grants, err := cfg.Grants(cfg.MCP.Agent)
		if err != nil {
			return err
		}

		// Create a context that cancels on interrupt signal
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := cli.Build(ctx, cfg, logger, cli.BuildOptions{Restore: restore})
		if err != nil {
			return fmt.Errorf("error initializing store: %w", err)
		}
		defer rt.Close()

		opts := []mcp.Option{mcp.WithLogger(logger)}
		if cfg.MCP.Agent != "" {
			opts = append(opts, mcp.WithAvailable(grants...))
		}
		srv := mcp.NewServer(rt.Store, opts...)
		defer srv.Close()

		switch cfg.MCP.Transport {
		case "", "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting statekit MCP Server (Stdio)", "agent", cfg.MCP.Agent)
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting statekit MCP Server (SSE)", "address", cfg.MCP.Listen, "agent", cfg.MCP.Agent)
			if err := srv.ServeSSE(ctx, cfg.MCP.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", cfg.MCP.Transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("listen", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("agent", "", "Expose only the actions granted to this agent")
	mcpCmd.Flags().Bool("restore", false, "Restore state from the configured journal")
}
