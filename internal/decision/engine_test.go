package decision

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppiankov/neurorouter"
	"github.com/ppiankov/storyforge/internal/model"
)

// scriptedCompleter returns canned results in order and counts calls.
type scriptedCompleter struct {
	results []string
	errs    []error
	calls   int
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return "", NewFatalError(fmt.Errorf("script exhausted at call %d", i))
}

// fastRetry keeps backoff out of test runtime.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        time.Millisecond,
	}
}

func TestDecideReturnsParsedDecision(t *testing.T) {
	c := &scriptedCompleter{results: []string{`{"action":"click","target":"#search"}`}}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	d, err := e.Decide(context.Background(), Query{UseCase: "search for laptops", Snapshot: "<html></html>"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Kind != model.DecisionClick || d.Target != "#search" {
		t.Errorf("unexpected decision: %+v", d)
	}
	if c.calls != 1 {
		t.Errorf("expected 1 call, got %d", c.calls)
	}
}

func TestDecideRetriesTransientFailures(t *testing.T) {
	c := &scriptedCompleter{
		errs:    []error{NewTransientError(errors.New("timeout")), NewTransientError(errors.New("timeout"))},
		results: []string{"", "", `{"action":"done"}`},
	}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	d, err := e.Decide(context.Background(), Query{UseCase: "finish"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if d.Kind != model.DecisionDone {
		t.Errorf("expected done, got %q", d.Kind)
	}
	if c.calls != 3 {
		t.Errorf("expected 3 calls, got %d", c.calls)
	}
}

func TestDecideStopsOnFatalError(t *testing.T) {
	c := &scriptedCompleter{errs: []error{NewFatalError(errors.New("invalid api key"))}}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	_, err := e.Decide(context.Background(), Query{UseCase: "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if c.calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", c.calls)
	}
}

func TestDecideNeverRetriesFormatErrors(t *testing.T) {
	c := &scriptedCompleter{results: []string{"I would click the search button."}}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	_, err := e.Decide(context.Background(), Query{UseCase: "anything"})
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *FormatError, got %T: %v", err, err)
	}
	if c.calls != 1 {
		t.Errorf("format error must not be retried, got %d calls", c.calls)
	}
}

func TestDecideSurfacesRateLimitAfterExhaustion(t *testing.T) {
	rateLimited := NewTransientError(fmt.Errorf("%w: status 429", neurorouter.ErrRateLimited))
	c := &scriptedCompleter{errs: []error{rateLimited, rateLimited, rateLimited}}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	_, err := e.Decide(context.Background(), Query{UseCase: "anything"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, neurorouter.ErrRateLimited) {
		t.Errorf("expected rate limit to survive wrapping, got %v", err)
	}
	if c.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", c.calls)
	}
}

func TestDecideHonorsCanceledContext(t *testing.T) {
	c := &scriptedCompleter{errs: []error{
		NewTransientError(errors.New("timeout")),
		NewTransientError(errors.New("timeout")),
		NewTransientError(errors.New("timeout")),
	}}
	e := NewEngine(c, WithRetryConfig(fastRetry(3)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Decide(ctx, Query{UseCase: "anything"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.calls != 1 {
		t.Errorf("expected no retry after cancellation, got %d calls", c.calls)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       5,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        3 * time.Second,
	}

	// Jitter is +/- 25%, so bound checks use the widest window.
	first := cfg.backoff(1)
	if first < 750*time.Millisecond || first > 1250*time.Millisecond {
		t.Errorf("attempt 1 backoff out of range: %v", first)
	}
	third := cfg.backoff(3)
	if third > time.Duration(float64(cfg.MaxBackoff)*1.25) {
		t.Errorf("attempt 3 backoff exceeds cap: %v", third)
	}
}
