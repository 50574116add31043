// Package daemon implements the storyforge inbox/outbox job service.
// Jobs arrive as JSON files in the inbox directory, each runs the
// generation pipeline once, and a result file lands in the outbox.
package daemon

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// validID constrains job IDs to names safe to reuse as filenames.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Job is a unit of work dropped into the inbox: one URL plus the user
// story to turn into a test.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Story     string    `json:"story"`
	MaxSteps  int       `json:"max_steps,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the outbox answer to one job, named <job id>.json.
type Result struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	RunID       string    `json:"run_id,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	TestFile    string    `json:"test_file,omitempty"`
	ArtifactDir string    `json:"artifact_dir,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Terminal statuses a Result can carry.
const (
	ResultDone   = "done"
	ResultFailed = "failed"
)

// ValidateJob rejects jobs with missing fields or an ID that could
// escape the outbox when used as a filename.
func ValidateJob(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if strings.Contains(j.ID, "..") {
		return fmt.Errorf("job ID may not contain '..'")
	}
	if !validID.MatchString(j.ID) {
		return fmt.Errorf("job ID may only use letters, digits, dash, and underscore")
	}
	if j.URL == "" {
		return fmt.Errorf("job URL is required")
	}
	u, err := url.Parse(j.URL)
	if err != nil {
		return fmt.Errorf("job URL is not parseable: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("job URL scheme must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(j.Story) == "" {
		return fmt.Errorf("job story is required")
	}
	if j.MaxSteps < 0 {
		return fmt.Errorf("job max_steps must not be negative")
	}
	return nil
}
