package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/storyforge/internal/config"
	storymcp "github.com/ppiankov/storyforge/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs storyforge as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes the tools: storyforge_generate, storyforge_runs, storyforge_show.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := newLogger()

	// The host talks to us over stdio; SIGINT/SIGTERM is the only
	// shutdown channel.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer r.Close()

	srv, err := storymcp.New(storymcp.Config{
		Runner:    r,
		Artifacts: r.store,
		History:   r.history,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	return srv.Run(ctx)
}
