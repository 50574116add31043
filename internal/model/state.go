package model

import (
	"time"

	"github.com/google/uuid"
)

// Stage names surfaced in failures, artifacts, and run history.
const (
	StageNavigate = "navigate"
	StageExtract  = "extract"
	StagePlan     = "plan"
	StageEmit     = "emit"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunDone   RunStatus = "done"
	RunFailed RunStatus = "failed"
)

// StageError records which stage failed and why. It is the persisted
// form of a pipeline failure; the live error travels separately.
type StageError struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// RunState is the single container threaded through the pipeline. The
// controller is its sole owner; stages receive it by value and return
// the updated value. URL and UseCase never change after creation;
// Journey is append-only during stage 1; Locators, Scenarios, and
// TestSource are each written exactly once by their stage.
type RunState struct {
	RunID      string
	URL        string
	UseCase    string
	Journey    Journey
	Locators   []Locator
	Scenarios  []Scenario
	TestSource string
	StageError *StageError
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunState creates the state for one run with a fresh run ID.
func NewRunState(url, useCase string) RunState {
	return RunState{
		RunID:     uuid.NewString(),
		URL:       url,
		UseCase:   useCase,
		StartedAt: time.Now().UTC(),
	}
}

// Status reports whether the run completed all stages.
func (s RunState) Status() RunStatus {
	if s.StageError != nil {
		return RunFailed
	}
	return RunDone
}
