// Package pipeline sequences the four generation stages: navigate,
// extract, plan, emit. The controller owns the run state from input to
// persisted artifacts, halts on the first stage failure, and leaves
// everything produced so far on disk for diagnosis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/browser"
	"github.com/ppiankov/storyforge/internal/emit"
	"github.com/ppiankov/storyforge/internal/history"
	"github.com/ppiankov/storyforge/internal/locator"
	"github.com/ppiankov/storyforge/internal/model"
	"github.com/ppiankov/storyforge/internal/scenario"
)

// Explorer runs the navigation stage. *navigate.Agent satisfies it.
type Explorer interface {
	Explore(ctx context.Context, tool browser.Tool, url, useCase string) (model.Journey, error)
}

// Controller runs one generation from (url, use case) to artifacts.
type Controller struct {
	explorer     Explorer
	browsers     browser.Factory
	store        *artifact.Store
	history      *history.Store
	storageState string
	log          *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithHistory records every finished run in the given store.
func WithHistory(h *history.Store) Option {
	return func(c *Controller) { c.history = h }
}

// WithStorageState makes generated tests load the given Playwright
// storage-state file.
func WithStorageState(path string) Option {
	return func(c *Controller) { c.storageState = path }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a Controller over the exploration agent, a browser
// factory, and the artifact store.
func New(explorer Explorer, browsers browser.Factory, store *artifact.Store, opts ...Option) *Controller {
	c := &Controller{
		explorer: explorer,
		browsers: browsers,
		store:    store,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the stages strictly in order and stops at the first
// failure. The returned state carries everything produced up to the
// halt; a failure is reported as *StageFailure. The run summary and
// the history row are written for failed runs too.
func (c *Controller) Run(ctx context.Context, url, useCase string) (model.RunState, error) {
	state := model.NewRunState(url, useCase)
	c.log.Info("run started", "run_id", state.RunID, "url", url)

	var artifacts []string
	runErr := c.execute(ctx, &state, &artifacts)
	state.FinishedAt = time.Now().UTC()

	if _, err := c.store.SaveSummary(state, artifacts); err != nil {
		c.log.Error("save summary", "run_id", state.RunID, "error", err)
	}
	c.record(state)

	if runErr != nil {
		return state, runErr
	}
	c.log.Info("run done",
		"run_id", state.RunID,
		"steps", state.Journey.Len(),
		"locators", len(state.Locators),
		"scenarios", len(state.Scenarios))
	return state, nil
}

func (c *Controller) execute(ctx context.Context, state *model.RunState, artifacts *[]string) error {
	journey, navErr := c.explore(ctx, state)
	state.Journey = journey

	// A partial journey is still written: it is the diagnostic record
	// of what the agent saw before the failure.
	var saveErr error
	if journey.Len() > 0 {
		name, err := c.store.SaveJourney(state.RunID, journey)
		if err != nil {
			saveErr = err
		} else {
			*artifacts = append(*artifacts, name)
		}
	}
	if navErr != nil {
		return c.fail(state, model.StageNavigate, navErr)
	}
	if saveErr != nil {
		return c.fail(state, model.StageNavigate, saveErr)
	}
	c.log.Info("navigation finished",
		"run_id", state.RunID,
		"steps", journey.Len(),
		"termination", journey.Termination)

	locators, err := locator.Extract(state.Journey)
	if err != nil {
		return c.fail(state, model.StageExtract, err)
	}
	state.Locators = locators
	name, err := c.store.SaveLocators(state.RunID, locators)
	if err != nil {
		return c.fail(state, model.StageExtract, err)
	}
	*artifacts = append(*artifacts, name)
	c.log.Info("locators extracted", "run_id", state.RunID, "count", len(locators))

	scenarios, err := scenario.Plan(state.URL, state.UseCase, state.Locators)
	if err != nil {
		return c.fail(state, model.StagePlan, err)
	}
	state.Scenarios = scenarios
	name, err = c.store.SaveScenarios(state.RunID, scenarios)
	if err != nil {
		return c.fail(state, model.StagePlan, err)
	}
	*artifacts = append(*artifacts, name)
	c.log.Info("scenarios planned", "run_id", state.RunID, "count", len(scenarios))

	source, err := emit.Render(state.UseCase, state.Scenarios, state.Locators,
		emit.Options{StorageState: c.storageState})
	if err != nil {
		return c.fail(state, model.StageEmit, err)
	}
	state.TestSource = source
	name, err = c.store.SaveTestSource(state.RunID, state.UseCase, source)
	if err != nil {
		return c.fail(state, model.StageEmit, err)
	}
	*artifacts = append(*artifacts, name)
	return nil
}

// explore acquires the browser session, runs stage 1, and releases the
// session before returning. Stages 2-4 never hold a browser.
func (c *Controller) explore(ctx context.Context, state *model.RunState) (model.Journey, error) {
	session, err := c.browsers.Acquire(ctx)
	if err != nil {
		return model.Journey{}, fmt.Errorf("acquire browser: %w", err)
	}
	defer func() {
		if err := session.Close(ctx); err != nil {
			c.log.Warn("close browser", "run_id", state.RunID, "error", err)
		}
	}()
	return c.explorer.Explore(ctx, session, state.URL, state.UseCase)
}

func (c *Controller) fail(state *model.RunState, stage string, err error) error {
	kind := classify(err)
	state.StageError = &model.StageError{Stage: stage, Detail: kind + ": " + err.Error()}
	c.log.Error("stage failed", "run_id", state.RunID, "stage", stage, "kind", kind, "error", err)
	return &StageFailure{Stage: stage, Kind: kind, Err: err}
}

func (c *Controller) record(state model.RunState) {
	if c.history == nil {
		return
	}
	testFile := ""
	if state.TestSource != "" {
		testFile = artifact.Slug(state.UseCase) + ".spec.ts"
	}
	if err := c.history.Save(history.FromState(state, testFile)); err != nil {
		c.log.Error("record history", "run_id", state.RunID, "error", err)
	}
}
