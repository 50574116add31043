// Package artifact persists run outputs: one directory per run, one
// file per stage artifact, every write atomic via tmp+rename.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/storyforge/internal/model"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// Artifact file names. The test source name is derived from the story.
const (
	JourneyFile   = "journey.txt"
	LocatorsFile  = "locators.json"
	ScenariosFile = "scenarios.json"
	SummaryFile   = "run.json"
)

// Store writes run artifacts under a root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// RunDir returns the directory for one run, creating it if needed.
func (s *Store) RunDir(runID string) (string, error) {
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// SaveJourney writes the journey as human-readable text: one block per
// step in order, then the termination trailer.
func (s *Store) SaveJourney(runID string, j model.Journey) (string, error) {
	var b strings.Builder
	for _, step := range j.Steps {
		fmt.Fprintf(&b, "--- step %d ---\n", step.Index)
		fmt.Fprintf(&b, "decision: %s\n", step.Decision.String())
		b.WriteString("snapshot:\n")
		b.WriteString(step.Snapshot)
		if !strings.HasSuffix(step.Snapshot, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "termination: %s\n", j.Termination)

	return s.write(runID, JourneyFile, []byte(b.String()))
}

type locatorEntry struct {
	Source      model.SourceAttribute `json:"source"`
	Confidence  model.Confidence      `json:"confidence"`
	Description string                `json:"description"`
}

// SaveLocators writes the locator set keyed by selector expression.
func (s *Store) SaveLocators(runID string, locators []model.Locator) (string, error) {
	bySelector := make(map[string]locatorEntry, len(locators))
	for _, l := range locators {
		bySelector[l.Selector] = locatorEntry{
			Source:      l.Source,
			Confidence:  l.Confidence,
			Description: l.Description,
		}
	}
	data, err := json.MarshalIndent(bySelector, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal locators: %w", err)
	}
	return s.write(runID, LocatorsFile, data)
}

// SaveScenarios writes the ordered scenario plan.
func (s *Store) SaveScenarios(runID string, scenarios []model.Scenario) (string, error) {
	data, err := json.MarshalIndent(scenarios, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal scenarios: %w", err)
	}
	return s.write(runID, ScenariosFile, data)
}

// SaveTestSource writes the generated test, named after the story.
func (s *Store) SaveTestSource(runID, useCase, source string) (string, error) {
	return s.write(runID, Slug(useCase)+".spec.ts", []byte(source))
}

// Summary is the persisted run record.
type Summary struct {
	RunID       string                  `json:"run_id"`
	URL         string                  `json:"url"`
	UseCase     string                  `json:"use_case"`
	Status      model.RunStatus         `json:"status"`
	StageError  *model.StageError       `json:"stage_error,omitempty"`
	Steps       int                     `json:"steps"`
	Termination model.TerminationReason `json:"termination,omitempty"`
	Locators    int                     `json:"locators"`
	Scenarios   int                     `json:"scenarios"`
	Artifacts   []string                `json:"artifacts"`
	StartedAt   string                  `json:"started_at"`
	FinishedAt  string                  `json:"finished_at"`
}

// SaveSummary writes run.json from the final state. artifacts lists
// the file names written for this run, in stage order.
func (s *Store) SaveSummary(state model.RunState, artifacts []string) (string, error) {
	sum := Summary{
		RunID:       state.RunID,
		URL:         state.URL,
		UseCase:     state.UseCase,
		Status:      state.Status(),
		StageError:  state.StageError,
		Steps:       state.Journey.Len(),
		Termination: state.Journey.Termination,
		Locators:    len(state.Locators),
		Scenarios:   len(state.Scenarios),
		Artifacts:   artifacts,
		StartedAt:   state.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:  state.FinishedAt.UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return s.write(state.RunID, SummaryFile, data)
}

// ReadSummary loads a run's summary back.
func (s *Store) ReadSummary(runID string) (Summary, error) {
	var sum Summary
	data, err := os.ReadFile(filepath.Join(s.root, runID, SummaryFile))
	if err != nil {
		return sum, err
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("parse %s: %w", SummaryFile, err)
	}
	return sum, nil
}

// ReadTestSource loads a run's generated test, if present.
func (s *Store) ReadTestSource(runID, useCase string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, runID, Slug(useCase)+".spec.ts"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// write stores one artifact atomically and returns its file name.
func (s *Store) write(runID, name string, data []byte) (string, error) {
	dir, err := s.RunDir(runID)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return name, nil
}

// Slug derives a file-system-safe name from the use case.
func Slug(useCase string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(useCase) {
		switch {
		case 'a' <= r && r <= 'z' || '0' <= r && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 64 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "generated"
	}
	return slug
}
