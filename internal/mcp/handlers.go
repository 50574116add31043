package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/pipeline"
)

// --- Input/Output types ---

// GenerateInput defines parameters for the storyforge_generate tool.
type GenerateInput struct {
	URL      string `json:"url" jsonschema:"starting URL of the site under test"`
	Story    string `json:"story" jsonschema:"natural-language user story to turn into a test"`
	MaxSteps int    `json:"max_steps,omitempty" jsonschema:"navigation step ceiling, 0 uses the configured default"`
}

// GenerateOutput reports the finished run or the stage that failed.
type GenerateOutput struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	Steps       int    `json:"steps"`
	Locators    int    `json:"locators,omitempty"`
	Scenarios   int    `json:"scenarios,omitempty"`
	TestFile    string `json:"test_file,omitempty"`
	TestSource  string `json:"test_source,omitempty"`
	ArtifactDir string `json:"artifact_dir,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunsInput defines parameters for the storyforge_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum rows to return, 0 uses the default of 20"`
}

// RunsOutput lists recent runs, newest first.
type RunsOutput struct {
	Runs []RunItem `json:"runs"`
}

// RunItem is one history row.
type RunItem struct {
	RunID      string `json:"run_id"`
	URL        string `json:"url"`
	Story      string `json:"story"`
	Status     string `json:"status"`
	Stage      string `json:"stage,omitempty"`
	Steps      int    `json:"steps"`
	TestFile   string `json:"test_file,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// ShowInput defines parameters for the storyforge_show tool.
type ShowInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from storyforge_generate or storyforge_runs"`
}

// ShowOutput is one run's summary with resolved artifact paths.
type ShowOutput struct {
	RunID       string   `json:"run_id"`
	URL         string   `json:"url"`
	Story       string   `json:"story"`
	Status      string   `json:"status"`
	Stage       string   `json:"stage,omitempty"`
	Error       string   `json:"error,omitempty"`
	Steps       int      `json:"steps"`
	Termination string   `json:"termination,omitempty"`
	Locators    int      `json:"locators"`
	Scenarios   int      `json:"scenarios"`
	Artifacts   []string `json:"artifacts"`
	TestSource  string   `json:"test_source,omitempty"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at"`
}

// --- Handlers ---

func (s *Server) handleGenerate(ctx context.Context, req *mcpsdk.CallToolRequest, input GenerateInput) (*mcpsdk.CallToolResult, GenerateOutput, error) {
	story := strings.TrimSpace(input.Story)
	if err := validateTarget(input.URL); err != nil {
		return nil, GenerateOutput{}, err
	}
	if story == "" {
		return nil, GenerateOutput{}, fmt.Errorf("story is required")
	}

	s.log.Info("mcp generate", "url", input.URL, "story", story)
	state, runErr := s.runner.Run(ctx, input.URL, story, input.MaxSteps)

	out := GenerateOutput{
		RunID:  state.RunID,
		Status: string(state.Status()),
		Steps:  state.Journey.Len(),
	}
	if state.RunID != "" {
		out.ArtifactDir = filepath.Join(s.store.Root(), state.RunID)
	}

	if runErr != nil {
		var failure *pipeline.StageFailure
		if errors.As(runErr, &failure) {
			out.Stage = failure.Stage
			out.Error = runErr.Error()
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
		return nil, GenerateOutput{}, runErr
	}

	out.Locators = len(state.Locators)
	out.Scenarios = len(state.Scenarios)
	out.TestFile = artifact.Slug(story) + ".spec.ts"
	out.TestSource = state.TestSource
	return nil, out, nil
}

func (s *Server) handleRuns(ctx context.Context, req *mcpsdk.CallToolRequest, input RunsInput) (*mcpsdk.CallToolResult, RunsOutput, error) {
	records, err := s.history.List(input.Limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	items := make([]RunItem, len(records))
	for i, r := range records {
		items[i] = RunItem{
			RunID:      r.RunID,
			URL:        r.URL,
			Story:      r.UseCase,
			Status:     string(r.Status),
			Stage:      r.Stage,
			Steps:      r.Steps,
			TestFile:   r.TestFile,
			StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
		}
	}

	return nil, RunsOutput{Runs: items}, nil
}

func (s *Server) handleShow(ctx context.Context, req *mcpsdk.CallToolRequest, input ShowInput) (*mcpsdk.CallToolResult, ShowOutput, error) {
	runID := strings.TrimSpace(input.RunID)
	if runID == "" {
		return nil, ShowOutput{}, fmt.Errorf("run_id is required")
	}

	sum, err := s.store.ReadSummary(runID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ShowOutput{}, fmt.Errorf("run %q not found", runID)
		}
		return nil, ShowOutput{}, err
	}

	out := ShowOutput{
		RunID:       sum.RunID,
		URL:         sum.URL,
		Story:       sum.UseCase,
		Status:      string(sum.Status),
		Steps:       sum.Steps,
		Termination: string(sum.Termination),
		Locators:    sum.Locators,
		Scenarios:   sum.Scenarios,
		StartedAt:   sum.StartedAt,
		FinishedAt:  sum.FinishedAt,
	}
	if sum.StageError != nil {
		out.Stage = sum.StageError.Stage
		out.Error = sum.StageError.Detail
	}

	runDir := filepath.Join(s.store.Root(), runID)
	out.Artifacts = make([]string, len(sum.Artifacts))
	for i, name := range sum.Artifacts {
		out.Artifacts[i] = filepath.Join(runDir, name)
	}

	if src, err := s.store.ReadTestSource(runID, sum.UseCase); err == nil {
		out.TestSource = src
	}

	return nil, out, nil
}

// --- Helpers ---

// validateTarget rejects URLs the browser session could never open.
func validateTarget(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https")
	}
	return nil
}
