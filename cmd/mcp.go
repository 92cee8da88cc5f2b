package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/logging"
	"github.com/teemow/goaltiers/internal/resources"
	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tools/goal_tools"
)

// MCPConfig holds the settings of the mcp command.
type MCPConfig struct {
	ReadOnly bool
	SeedDemo bool

	Log     LogConfig
	Storage StorageConfig
}

func newMCPCmd() *cobra.Command {
	var cfg MCPConfig

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the goal tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on standard input/output so AI
assistants can list, create, update and delete goals.

Use --task-storage=valkey (or sqlite with the same --sqlite-path) with the
same settings as "goaltiers serve" to share goals with the API server.
Writes from either process are versioned, so neither overwrites the other.

Safety Mode:
  Use --read-only to expose only goals_list and goals_get.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadTaskStorageEnvVars(cmd, &cfg.Storage)
			loadLogEnvVars(cmd, &cfg.Log)
			return runMCP(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.ReadOnly, "read-only", false, "Only register tools that do not modify goals")
	cmd.Flags().BoolVar(&cfg.SeedDemo, "seed-demo", false, "Load the demo goal hierarchy when the store is empty")
	addLogFlags(cmd, &cfg.Log)
	addStorageFlags(cmd, &cfg.Storage)

	return cmd
}

func runMCP(cfg MCPConfig) error {
	// Logs go to stderr; stdout carries the protocol.
	logger, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, instrConfig, err := newInstrumentation(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	backend, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer backend.close()
	store := backend.store

	if cfg.SeedDemo {
		if err := seedDemo(ctx, store, logger); err != nil {
			return err
		}
	}

	serverContext, err := server.NewServerContext(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("error during server context shutdown", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
	}
	if instrConfig.AuditLogging.Enabled {
		serverContext.SetAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging))
	}

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, serverContext, cfg.ReadOnly); err != nil {
		return err
	}

	logger.Info("starting MCP server on stdio", slog.Bool("read_only", cfg.ReadOnly))
	return serveStdio(ctx, mcpSrv, os.Stdin, os.Stdout)
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("goaltiers", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
}

// registerAllTools adds the goal tools and the goal resources. With
// readOnly only the tools that do not modify goals are added.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := goal_tools.RegisterGoalTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register goal tools: %w", err)
	}
	if err := resources.RegisterGoalResources(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register goal resources: %w", err)
	}
	return nil
}

// serveStdio speaks MCP over in and out until ctx is cancelled or in
// reaches EOF. Cancellation is a clean stop.
func serveStdio(ctx context.Context, mcpSrv *mcpserver.MCPServer, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags))

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("server stopped with error: %w", err)
}
