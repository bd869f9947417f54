package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/warden/internal/cli"
	"github.com/aretw0/warden/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the configured drivers behind a Model Context Protocol (MCP) server",
	Long: `Starts every configured driver and exposes them as MCP tools
(send_signal, list_drivers, kickstart_driver), so AI agents can drive them.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		if transport != "stdio" && transport != "sse" {
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		// Stdout carries JSON-RPC on stdio: component messages go to stderr.
		log.SetOutput(os.Stderr)
		host := cli.NewHost(cfg, cli.HostOptions{Logger: logger, Out: os.Stderr})

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()
		if err := host.Start(sc); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
			defer cancel()
			if err := host.Shutdown(ctx); err != nil {
				logger.Error("Shutdown failed", "error", err)
			}
		}()

		srv := mcp.NewServer(host.Registry(), host.Bus(), mcp.WithLogger(logger))
		switch transport {
		case "stdio":
			logger.Info("Starting Warden MCP Server (Stdio)...")
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ServeStdio() }()
			select {
			case err := <-errCh:
				return err
			case <-sc.Done():
				return nil
			}
		default:
			logger.Info("Starting Warden MCP Server (SSE)", "addr", addr)
			if err := srv.ServeSSE(sc, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8701", "Address to listen on (only for SSE)")
}
