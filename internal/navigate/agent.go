// Package navigate drives the exploration loop: decide, act, snapshot,
// repeat, until the user story is judged complete or a bound is hit.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/storyforge/internal/browser"
	"github.com/ppiankov/storyforge/internal/decision"
	"github.com/ppiankov/storyforge/internal/model"
)

// DefaultMaxSteps bounds exploration when the decision stream never
// settles. Exceeding it terminates the journey, it does not fail it.
const DefaultMaxSteps = 12

// defaultRetryLimit is how many times a failed tool invocation is
// retried with identical semantics before the stage fails.
const defaultRetryLimit = 2

// Decider produces exactly one navigation decision per query.
type Decider interface {
	Decide(ctx context.Context, q decision.Query) (model.Decision, error)
}

// Agent runs the navigation loop over an injected browser tool and
// decider. It owns the step ceiling and the per-invocation retry
// bound; it does not own the browser session's lifetime.
type Agent struct {
	decider    Decider
	maxSteps   int
	retryLimit int
	log        *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSteps overrides the exploration step ceiling.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithRetryLimit overrides how many retries a tool invocation gets.
func WithRetryLimit(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.retryLimit = n
		}
	}
}

// WithLogger sets the agent's logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// NewAgent creates a navigation agent around a decider.
func NewAgent(d Decider, opts ...Option) *Agent {
	a := &Agent{
		decider:    d,
		maxSteps:   DefaultMaxSteps,
		retryLimit: defaultRetryLimit,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Explore captures one journey for the user story against url. The
// returned journey carries an explicit termination reason; on error it
// holds whatever steps were captured before the failure, for diagnosis.
//
// A target the browser cannot find terminates the journey (the page
// offers no way forward), it does not fail the stage. A decision the
// engine cannot parse, or a tool invocation that keeps failing after
// retries, fails the stage.
func (a *Agent) Explore(ctx context.Context, tool browser.Tool, url, useCase string) (model.Journey, error) {
	var journey model.Journey

	if err := a.invokeTool(ctx, "navigate", func() error { return tool.Navigate(ctx, url) }); err != nil {
		return journey, err
	}
	snapshot, err := a.capture(ctx, tool)
	if err != nil {
		return journey, err
	}
	a.log.Info("exploration started", "url", url, "max_steps", a.maxSteps)

	var history []model.Decision
	for step := 0; step < a.maxSteps; step++ {
		d, err := a.decider.Decide(ctx, decision.Query{
			UseCase:  useCase,
			Snapshot: snapshot,
			History:  history,
		})
		if err != nil {
			return journey, fmt.Errorf("step %d: decide: %w", step, err)
		}

		// The step records the snapshot the decision was made on,
		// whether or not the action then succeeds.
		journey.Steps = append(journey.Steps, model.NavigationStep{
			Index:    step,
			Snapshot: snapshot,
			Decision: d,
		})
		history = append(history, d)
		a.log.Debug("step decided", "step", step, "decision", d.String())

		if d.Kind == model.DecisionDone {
			journey.Termination = model.TerminatedDone
			a.log.Info("exploration done", "steps", journey.Len(), "reason", d.Reason)
			return journey, nil
		}

		err = a.act(ctx, tool, d)
		var noTarget *browser.NoTargetError
		if errors.As(err, &noTarget) {
			journey.Termination = model.TerminatedNoTarget
			a.log.Warn("no element matches target, stopping", "step", step, "target", noTarget.Target)
			return journey, nil
		}
		if err != nil {
			return journey, fmt.Errorf("step %d: %w", step, err)
		}

		snapshot, err = a.capture(ctx, tool)
		if err != nil {
			return journey, fmt.Errorf("step %d: %w", step, err)
		}
	}

	journey.Termination = model.TerminatedStepLimit
	a.log.Info("step ceiling reached", "steps", journey.Len())
	return journey, nil
}

// act applies one decision through the tool.
func (a *Agent) act(ctx context.Context, tool browser.Tool, d model.Decision) error {
	switch d.Kind {
	case model.DecisionClick:
		return a.invokeTool(ctx, "click", func() error { return tool.Click(ctx, d.Target) })
	case model.DecisionType:
		return a.invokeTool(ctx, "type", func() error { return tool.Type(ctx, d.Target, d.Value) })
	default:
		return fmt.Errorf("cannot act on decision kind %q", d.Kind)
	}
}

// capture takes a snapshot through the tool with the standard retry.
func (a *Agent) capture(ctx context.Context, tool browser.Tool) (string, error) {
	var snapshot string
	err := a.invokeTool(ctx, "snapshot", func() error {
		s, err := tool.Snapshot(ctx)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	return snapshot, err
}

// invokeTool runs one tool call, retrying failures up to the retry
// limit. A missing target is not a tool failure and is never retried.
func (a *Agent) invokeTool(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= a.retryLimit; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		var noTarget *browser.NoTargetError
		if errors.As(err, &noTarget) {
			return err
		}
		lastErr = err
		if attempt < a.retryLimit {
			a.log.Warn("tool invocation failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"retry_limit", a.retryLimit,
				"error", err)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, a.retryLimit+1, lastErr)
}
