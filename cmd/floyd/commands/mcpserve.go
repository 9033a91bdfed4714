package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/internal/mcp"
	"github.com/floydai/floyd/internal/mcpmanager"
	"github.com/floydai/floyd/pkg/types"
	"github.com/spf13/cobra"
)

var (
	mcpServeAddr string
	mcpServeDir  string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP-related commands",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the configured MCP tool catalogue over the MCP WebSocket protocol",
	Long: `Connects to every MCP server configured in .floyd/mcp.json and serves the
aggregated tool catalogue to inbound WebSocket clients, delegating
tools/call through the same MCP Client Manager the Agent Engine uses.`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpServeAddr, "addr", "localhost:3000", "Listen address")
	mcpServeCmd.Flags().StringVar(&mcpServeDir, "directory", "", "Working directory")
	mcpCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(mcpServeDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := mcpmanager.New()
	defer mgr.Close()

	servers := make([]types.MCPServerDescriptor, 0, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		servers = append(servers, s)
	}
	result := mgr.ConnectFromConfig(ctx, servers)
	logging.Logger.Info().
		Int("connected", len(result.Connected)).
		Int("failed", len(result.Failed)).
		Msg("mcp serve: upstream connections established")

	srv := mcp.NewServer(mcp.ServerConfig{Addr: mcpServeAddr}, mgr)

	fmt.Fprintf(os.Stderr, "serving MCP tools on ws://%s\n", mcpServeAddr)
	return srv.ListenAndServe(ctx)
}
