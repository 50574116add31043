package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/browser"
	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/decision"
	"github.com/ppiankov/storyforge/internal/history"
	"github.com/ppiankov/storyforge/internal/model"
	"github.com/ppiankov/storyforge/internal/navigate"
	"github.com/ppiankov/storyforge/internal/pipeline"
)

// runner holds the long-lived pieces of the pipeline: the decision
// engine, the browser factory, and the stores. Agents and controllers
// are rebuilt per run so each job can carry its own step ceiling.
type runner struct {
	cfg     *config.Config
	engine  *decision.Engine
	factory browser.Factory
	store   *artifact.Store
	history *history.Store
	log     *slog.Logger
}

// newRunner resolves credentials, picks the LLM backend for the
// configured provider, and opens the artifact and history stores. A
// missing credential fails here, before any browser or model call.
func newRunner(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runner, error) {
	apiKey := cfg.ResolveAPIKey()
	if cfg.NeedsAPIKey() && apiKey == "" {
		return nil, fmt.Errorf("no API key for provider %q: set api_key in the config file, STORYFORGE_API_KEY, or ~/.storyforge/key", cfg.Provider)
	}

	completer, err := newCompleter(ctx, cfg, apiKey)
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	if cfg.Browser.WindowWidth > 0 {
		opts.WindowWidth = cfg.Browser.WindowWidth
	}
	if cfg.Browser.WindowHeight > 0 {
		opts.WindowHeight = cfg.Browser.WindowHeight
	}
	if cfg.Browser.TimeoutSeconds > 0 {
		opts.CallTimeout = time.Duration(cfg.Browser.TimeoutSeconds) * time.Second
	}

	return &runner{
		cfg:     cfg,
		engine:  decision.NewEngine(completer, decision.WithLogger(log)),
		factory: browser.ChromeFactory(opts),
		store:   artifact.NewStore(cfg.OutputDir),
		history: hist,
		log:     log,
	}, nil
}

// newCompleter builds the LLM client for the configured provider.
func newCompleter(ctx context.Context, cfg *config.Config, apiKey string) (decision.Completer, error) {
	endpoint := cfg.ResolveEndpoint(apiKey)
	modelName := cfg.ResolveModel(endpoint)

	switch cfg.Provider {
	case config.ProviderChat, "":
		return decision.NewChatCompleter(endpoint, apiKey, modelName), nil
	case config.ProviderAnthropic:
		return decision.NewAnthropicCompleter(endpoint, apiKey, modelName), nil
	case config.ProviderBedrock:
		return decision.NewBedrockCompleter(ctx, cfg.Bedrock.Region, modelName, cfg.Bedrock.AccessKey, cfg.Bedrock.SecretKey)
	default:
		return nil, fmt.Errorf("unknown provider %q: must be one of: chat, anthropic, bedrock", cfg.Provider)
	}
}

// Run executes one generation. maxSteps <= 0 uses the configured default.
func (r *runner) Run(ctx context.Context, url, story string, maxSteps int) (model.RunState, error) {
	if maxSteps <= 0 {
		maxSteps = r.cfg.MaxSteps
	}
	agent := navigate.NewAgent(r.engine,
		navigate.WithMaxSteps(maxSteps),
		navigate.WithRetryLimit(r.cfg.RetryLimit),
		navigate.WithLogger(r.log),
	)
	ctrl := pipeline.New(agent, r.factory, r.store,
		pipeline.WithHistory(r.history),
		pipeline.WithStorageState(r.cfg.StorageState),
		pipeline.WithLogger(r.log),
	)
	return ctrl.Run(ctx, url, story)
}

// Close releases the history database.
func (r *runner) Close() error {
	return r.history.Close()
}
