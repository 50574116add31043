package storyforge

import (
	"fmt"
	"time"

	"github.com/ppiankov/storyforge/internal/daemon"
)

// Status is the terminal state of a processed job.
type Status string

// Job outcomes.
const (
	StatusDone   Status = daemon.ResultDone
	StatusFailed Status = daemon.ResultFailed
)

// Job describes one generation request: a site URL plus the user story
// to turn into a Playwright test. ID is optional; Submit assigns one
// when it is empty. MaxSteps of zero means the daemon's configured
// step ceiling.
type Job struct {
	ID       string
	URL      string
	Story    string
	MaxSteps int
}

// Result is the daemon's verdict on one job.
type Result struct {
	ID          string
	Status      Status
	RunID       string
	Stage       string
	Error       string
	TestFile    string
	ArtifactDir string
	CompletedAt time.Time
}

// Done reports whether the job produced a test.
func (r Result) Done() bool { return r.Status == StatusDone }

// GenerationError is returned by Generate when the pipeline failed.
// Stage names the stage that halted the run; artifacts from earlier
// stages remain readable under the run's artifact directory.
type GenerationError struct {
	ID     string
	Stage  string
	Reason string
}

func (e *GenerationError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("storyforge: job %s failed at the %s stage: %s", e.ID, e.Stage, e.Reason)
	}
	return fmt.Sprintf("storyforge: job %s failed: %s", e.ID, e.Reason)
}

// toInternalJob maps an SDK job onto the daemon's wire format.
func toInternalJob(j Job) daemon.Job {
	return daemon.Job{
		ID:        j.ID,
		URL:       j.URL,
		Story:     j.Story,
		MaxSteps:  j.MaxSteps,
		CreatedAt: time.Now().UTC(),
	}
}

// toResult maps a daemon result back to the SDK type.
func toResult(r daemon.Result) Result {
	return Result{
		ID:          r.ID,
		Status:      Status(r.Status),
		RunID:       r.RunID,
		Stage:       r.Stage,
		Error:       r.Error,
		TestFile:    r.TestFile,
		ArtifactDir: r.ArtifactDir,
		CompletedAt: r.CompletedAt,
	}
}
