package storyforge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/storyforge/internal/config"
	"github.com/ppiankov/storyforge/internal/daemon"
)

const defaultPollInterval = 500 * time.Millisecond

// Client talks the daemon's file protocol. Safe for concurrent use;
// every method works on its own files.
type Client struct {
	inbox        string
	outbox       string
	pollInterval time.Duration
}

// New creates a Client with the given options. Without options it uses
// the same directory layout as a daemon running on defaults
// (~/.storyforge/daemon).
func New(opts ...Option) (*Client, error) {
	defaults := config.DefaultConfig().Daemon
	cfg := clientConfig{
		inbox:        defaults.Inbox,
		outbox:       defaults.Outbox,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.inbox == "" || cfg.outbox == "" {
		return nil, fmt.Errorf("storyforge: inbox and outbox directories are required")
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}

	return &Client{
		inbox:        cfg.inbox,
		outbox:       cfg.outbox,
		pollInterval: cfg.pollInterval,
	}, nil
}

// Submit validates the job and drops it into the inbox, returning the
// job ID. A job without an ID gets a generated one.
func (c *Client) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = "job-" + uuid.NewString()
	}

	wire := toInternalJob(job)
	if err := daemon.ValidateJob(&wire); err != nil {
		return "", fmt.Errorf("storyforge: %w", err)
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storyforge: encode job: %w", err)
	}

	if err := os.MkdirAll(c.inbox, 0o750); err != nil {
		return "", fmt.Errorf("storyforge: create inbox: %w", err)
	}

	// Write under a .tmp name first so the daemon never picks up a
	// partial file, then rename into place.
	tmp, err := os.CreateTemp(c.inbox, ".submit-*.tmp")
	if err != nil {
		return "", fmt.Errorf("storyforge: stage job file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storyforge: write job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storyforge: write job file: %w", err)
	}

	final := filepath.Join(c.inbox, wire.ID+".json")
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storyforge: submit job: %w", err)
	}
	return wire.ID, nil
}

// Wait blocks until the result for id appears in the outbox or ctx
// ends. The result file is left in place; the outbox stays the record
// of processed jobs.
func (c *Client) Wait(ctx context.Context, id string) (Result, error) {
	path := filepath.Join(c.outbox, id+".json")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		data, err := os.ReadFile(path)
		if err == nil {
			var r daemon.Result
			if err := json.Unmarshal(data, &r); err != nil {
				return Result{}, fmt.Errorf("storyforge: parse result %s: %w", path, err)
			}
			return toResult(r), nil
		}
		if !os.IsNotExist(err) {
			return Result{}, fmt.Errorf("storyforge: read result: %w", err)
		}

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("storyforge: waiting for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Generate submits the job and waits for its result. When the pipeline
// failed, the result is returned alongside a *GenerationError so callers
// can still reach the run ID and partial artifact directory.
func (c *Client) Generate(ctx context.Context, job Job) (Result, error) {
	id, err := c.Submit(job)
	if err != nil {
		return Result{}, err
	}

	res, err := c.Wait(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if res.Status == StatusFailed {
		return res, &GenerationError{ID: res.ID, Stage: res.Stage, Reason: res.Error}
	}
	return res, nil
}
