package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vetrina/internal/adapters/driving/mcp"
	"github.com/custodia-labs/vetrina/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead. It serves MCP at /mcp,
Prometheus metrics at /metrics and a health check at /healthz. It binds
to localhost unless --host says otherwise.

Use --watch to reload the catalog whenever 'vetrina catalog build'
replaces it. Queries keep using the old catalog until the new one loads.

Examples:
  # Stdio mode (default, for Claude Desktop)
  vetrina mcp serve

  # HTTP mode with catalog hot reload
  vetrina mcp serve --port 8080 --watch

  # HTTP on every interface, e.g. inside a container
  vetrina mcp serve --port 8080 --host 0.0.0.0

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "vetrina": {
        "command": "/path/to/vetrina",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	flags := mcpServeCmd.Flags()
	flags.IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	flags.String("host", "localhost", "interface to bind in HTTP mode")
	flags.Duration("grace", mcp.DefaultShutdownTimeout, "how long in-flight HTTP requests may finish on shutdown")
	flags.Bool("watch", false, "reload the catalog when its files change")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	logger.SetTimestamps(true)
	defer logger.SetTimestamps(false)

	flags := cmd.Flags()
	port, _ := flags.GetInt("port")
	host, _ := flags.GetString("host")
	grace, _ := flags.GetDuration("grace")
	watch, _ := flags.GetBool("watch")
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search: searchService,
		Chat:   chatService,
	}, mcp.Options{
		Defaults:        searchDefaults(),
		Metrics:         metricsHandler,
		Version:         version,
		ShutdownTimeout: grace,
	})
	if err != nil {
		return err
	}
	if watch && reloader == nil {
		return errors.New("catalog watching not configured")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if watch {
		go runBackground(ctx, "catalog watcher", reloader.Run)
	}
	if scheduler != nil {
		go runBackground(ctx, "session sweeper", scheduler.Start)
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Error("session sweeper stop: %v", err)
			}
		}()
	}

	if port == 0 {
		return server.Run(ctx)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s/mcp\n", addr)
	return server.RunHTTP(ctx, addr)
}

// runBackground runs task until ctx ends, logging any failure other than
// the cancellation itself.
func runBackground(ctx context.Context, name string, task func(context.Context) error) {
	if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%s stopped: %v", name, err)
	}
}
