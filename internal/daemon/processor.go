package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/storyforge/internal/artifact"
	"github.com/ppiankov/storyforge/internal/model"
	"github.com/ppiankov/storyforge/internal/pipeline"
)

// Runner executes one generation. maxSteps <= 0 leaves the runner's
// configured ceiling in place.
type Runner interface {
	Run(ctx context.Context, url, story string, maxSteps int) (model.RunState, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, url, story string, maxSteps int) (model.RunState, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, url, story string, maxSteps int) (model.RunState, error) {
	return f(ctx, url, story, maxSteps)
}

// ProcessorConfig tells a Processor where jobs, results, and run
// artifacts live.
type ProcessorConfig struct {
	Dirs         DirConfig
	ArtifactRoot string
}

// Processor owns the job lifecycle from inbox file to outbox result.
type Processor struct {
	cfg    ProcessorConfig
	runner Runner
}

// NewProcessor creates a processor that executes jobs with runner.
func NewProcessor(cfg ProcessorConfig, runner Runner) *Processor {
	return &Processor{cfg: cfg, runner: runner}
}

// Process takes one inbox file from submission to outbox result. The
// job is validated, claimed into the processing directory, run through
// the pipeline, and answered with a result file whatever the outcome.
func (p *Processor) Process(ctx context.Context, jobPath string) error {
	// Reject symlinks before reading: an inbox writer must not be able
	// to point the daemon at arbitrary files elsewhere on disk.
	fi, err := os.Lstat(jobPath)
	if err != nil {
		return fmt.Errorf("lstat job: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(jobPath))
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("read job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		_ = os.Remove(jobPath)
		return p.writeFailedResult(filepath.Base(jobPath), fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := ValidateJob(&job); err != nil {
		_ = os.Remove(jobPath)
		return p.writeFailedResult(job.ID, fmt.Sprintf("validation failed: %v", err))
	}

	// Claim the job by moving it into processing. A crash from here on
	// leaves a marker the next start turns into a failed result.
	processingPath := filepath.Join(p.cfg.Dirs.ProcessingDir(), job.ID+".json")
	if err := moveFile(jobPath, processingPath); err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	result := p.execute(ctx, &job)

	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	_ = os.Remove(processingPath)
	return nil
}

// execute runs the pipeline and shapes the outcome into a Result.
func (p *Processor) execute(ctx context.Context, job *Job) *Result {
	state, err := p.runner.Run(ctx, job.URL, job.Story, job.MaxSteps)

	result := &Result{
		ID:          job.ID,
		RunID:       state.RunID,
		CompletedAt: time.Now().UTC(),
	}
	if p.cfg.ArtifactRoot != "" && state.RunID != "" {
		result.ArtifactDir = filepath.Join(p.cfg.ArtifactRoot, state.RunID)
	}
	if err != nil {
		result.Status = ResultFailed
		result.Error = err.Error()
		var sf *pipeline.StageFailure
		if errors.As(err, &sf) {
			result.Stage = sf.Stage
		}
		return result
	}
	result.Status = ResultDone
	result.TestFile = artifact.Slug(job.Story) + ".spec.ts"
	return result
}

// writeResult lands a result in the outbox. The .tmp then rename dance
// keeps pollers from reading a half-written file.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	final := filepath.Join(p.cfg.Dirs.Outbox, r.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write result temp: %w", err)
	}
	return os.Rename(tmp, final)
}

// writeFailedResult records a job that never reached the pipeline:
// malformed submissions and orphans found after a crash. The ID is
// sanitized first since it may come straight from a hostile filename.
func (p *Processor) writeFailedResult(id, errMsg string) error {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || !validID.MatchString(id) {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	r := &Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
	return p.writeResult(r)
}
