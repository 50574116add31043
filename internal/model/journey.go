package model

import "fmt"

// DecisionKind discriminates the decision variants the decider may return.
type DecisionKind string

const (
	DecisionClick DecisionKind = "click"
	DecisionType  DecisionKind = "type"
	DecisionDone  DecisionKind = "done"
)

// validDecisionKinds is the set of accepted decision kinds.
var validDecisionKinds = map[DecisionKind]bool{
	DecisionClick: true,
	DecisionType:  true,
	DecisionDone:  true,
}

// IsValidDecisionKind reports whether k is a known decision kind.
func IsValidDecisionKind(k DecisionKind) bool {
	return validDecisionKinds[k]
}

// Decision is one action proposed by the decision service. The JSON
// shape is the wire contract with the model:
// {"action":"click","target":"#id"}, {"action":"type","target":"#q","value":"laptop"},
// {"action":"done","reason":"goal reached"}.
type Decision struct {
	Kind   DecisionKind `json:"action"`
	Target string       `json:"target,omitempty"`
	Value  string       `json:"value,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// Validate checks that the decision carries the fields its kind requires.
func (d Decision) Validate() error {
	switch d.Kind {
	case DecisionClick:
		if d.Target == "" {
			return fmt.Errorf("click decision requires a target")
		}
	case DecisionType:
		if d.Target == "" {
			return fmt.Errorf("type decision requires a target")
		}
		if d.Value == "" {
			return fmt.Errorf("type decision requires a value")
		}
	case DecisionDone:
		// No required fields.
	default:
		return fmt.Errorf("unknown decision kind %q: must be one of: click, type, done", d.Kind)
	}
	return nil
}

// String renders the decision as a single journey-log line.
func (d Decision) String() string {
	switch d.Kind {
	case DecisionClick:
		return fmt.Sprintf("click target=%q", d.Target)
	case DecisionType:
		return fmt.Sprintf("type target=%q value=%q", d.Target, d.Value)
	case DecisionDone:
		if d.Reason != "" {
			return fmt.Sprintf("done reason=%q", d.Reason)
		}
		return "done"
	default:
		return string(d.Kind)
	}
}

// NavigationStep is one exploration iteration: the snapshot the decider
// saw and the decision it made on it. Step 0's snapshot reflects the
// initial page load; a done decision may only appear as the last step.
type NavigationStep struct {
	Index    int
	Snapshot string
	Decision Decision
}

// TerminationReason explains why the navigation loop stopped.
type TerminationReason string

const (
	// TerminatedDone: the decider judged the user story complete.
	TerminatedDone TerminationReason = "done"
	// TerminatedStepLimit: the configured step ceiling was reached.
	TerminatedStepLimit TerminationReason = "step_limit"
	// TerminatedNoTarget: the browser found no actionable element for
	// the decision's target; the loop cannot make progress.
	TerminatedNoTarget TerminationReason = "no_target"
)

// Journey is the ordered record of one exploration. Termination is
// explicit state so downstream consumers never infer it from the steps.
type Journey struct {
	Steps       []NavigationStep
	Termination TerminationReason
}

// Len returns the number of captured steps.
func (j Journey) Len() int { return len(j.Steps) }
