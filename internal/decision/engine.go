// Package decision turns model responses into validated navigation
// decisions. The Engine owns prompting, transport retry, and parsing;
// Completers adapt individual inference services.
package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/storyforge/internal/model"
)

// Completer produces raw model text for a system/user prompt pair.
// Implementations classify their failures as transient or fatal.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Engine is the production decider: prompt, complete with bounded
// retry on transient failures, parse. A FormatError from parsing is
// returned as-is and never retried.
type Engine struct {
	completer     Completer
	retry         RetryConfig
	snapshotLimit int
	log           *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryConfig overrides the transport retry bounds.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// WithSnapshotLimit caps the HTML characters sent per decision.
func WithSnapshotLimit(n int) Option {
	return func(e *Engine) { e.snapshotLimit = n }
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates a decision engine around a completer.
func NewEngine(c Completer, opts ...Option) *Engine {
	e := &Engine{
		completer:     c,
		retry:         DefaultRetryConfig(),
		snapshotLimit: defaultSnapshotLimit,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide returns exactly one decision for the query.
func (e *Engine) Decide(ctx context.Context, q Query) (model.Decision, error) {
	raw, err := e.completeWithRetry(ctx, systemPrompt, userPrompt(q, e.snapshotLimit))
	if err != nil {
		return model.Decision{}, err
	}

	d, err := Parse(raw)
	if err != nil {
		e.log.Warn("decision unparseable", "completer", e.completer.Name(), "error", err)
		return model.Decision{}, err
	}

	e.log.Debug("decision made", "completer", e.completer.Name(), "action", d.Kind, "target", d.Target)
	return d, nil
}

// completeWithRetry calls the completer, retrying transient failures
// with jittered exponential backoff. Fatal failures return immediately.
func (e *Engine) completeWithRetry(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		raw, err := e.completer.Complete(ctx, system, user)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if IsFatal(err) {
			return "", err
		}

		if attempt < e.retry.MaxAttempts {
			backoff := e.retry.backoff(attempt)
			e.log.Debug("decision request failed, retrying",
				"attempt", attempt,
				"max_attempts", e.retry.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", lastErr
}
