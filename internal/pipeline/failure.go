package pipeline

import (
	"errors"
	"fmt"

	"github.com/ppiankov/storyforge/internal/browser"
	"github.com/ppiankov/storyforge/internal/decision"
	"github.com/ppiankov/storyforge/internal/locator"
	"github.com/ppiankov/storyforge/internal/scenario"
)

// Failure kinds reported next to the failing stage in summaries,
// history rows, and logs. Programmatic matching stays on the typed
// errors via errors.Is/As.
const (
	KindToolInvocation         = "tool_invocation"
	KindDecisionFormat         = "decision_format"
	KindLocatorExtractionEmpty = "locator_extraction_empty"
	KindUnresolvedScenarioStep = "unresolved_scenario_step"
	KindInternal               = "internal"
)

// StageFailure is the error returned by Controller.Run when a stage
// halts the pipeline. It wraps the stage's own error unchanged.
type StageFailure struct {
	Stage string
	Kind  string
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// classify names the failure kind for reporting.
func classify(err error) string {
	var (
		formatErr *decision.FormatError
		toolErr   *browser.ToolError
		stepErr   *scenario.UnresolvedStepError
	)
	switch {
	case errors.As(err, &formatErr):
		return KindDecisionFormat
	case errors.As(err, &toolErr):
		return KindToolInvocation
	case errors.Is(err, locator.ErrNoElements):
		return KindLocatorExtractionEmpty
	case errors.As(err, &stepErr):
		return KindUnresolvedScenarioStep
	default:
		return KindInternal
	}
}
