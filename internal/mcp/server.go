// Package mcp exposes the generation pipeline over the Model Context
// Protocol. Agents call storyforge_generate to run the pipeline,
// storyforge_runs to list past runs, and storyforge_show to read one
// run's summary and artifacts.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/history"
	"github.com/ppiankov/storyforge/internal/model"
)

// Runner executes one generation run. maxSteps <= 0 means the runner's
// configured default.
type Runner interface {
	Run(ctx context.Context, url, story string, maxSteps int) (model.RunState, error)
}

// Config holds the MCP server's dependencies.
type Config struct {
	Runner    Runner
	Artifacts *artifact.Store
	History   *history.Store
	Log       *slog.Logger
}

// Server wraps the MCP SDK server around the storyforge pipeline.
type Server struct {
	mcpServer *mcpsdk.Server
	runner    Runner
	store     *artifact.Store
	history   *history.Store
	log       *slog.Logger
}

// New creates an MCP server with the storyforge tools registered.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("a pipeline runner is required")
	}
	if cfg.Artifacts == nil {
		return nil, fmt.Errorf("an artifact store is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("a history store is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	s := &Server{
		runner:  cfg.Runner,
		store:   cfg.Artifacts,
		history: cfg.History,
		log:     cfg.Log,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "storyforge",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled. Logging goes to stderr; stdout belongs to the protocol.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server listening", "transport", "stdio")
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the storyforge tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "storyforge_generate",
		Description: "Generate a Playwright test from a site URL and a natural-language user story. Failed runs return the failing stage and reason; partial artifacts stay readable via storyforge_show.",
	}, s.handleGenerate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "storyforge_runs",
		Description: "List recent generation runs, newest first.",
	}, s.handleRuns)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "storyforge_show",
		Description: "Show one run's summary, artifact paths, and generated test source.",
	}, s.handleShow)
}
