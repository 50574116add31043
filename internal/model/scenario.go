package model

import "fmt"

// StepKind is the BDD role of a scenario step.
type StepKind string

const (
	StepGiven StepKind = "given"
	StepWhen  StepKind = "when"
	StepThen  StepKind = "then"
)

// Step is one scenario step. LocatorRef, when set, names a Locator by
// its selector expression and must resolve within the run's locator
// set. Value carries typed input for fill steps and the target URL on
// the opening given step, so the emitter never parses step text.
type Step struct {
	Kind       StepKind `json:"kind"`
	Text       string   `json:"text"`
	LocatorRef string   `json:"locatorRef,omitempty"`
	Value      string   `json:"value,omitempty"`
}

// Scenario is one BDD-style test case.
type Scenario struct {
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// ValidateRefs enforces the cross-stage contract: every non-empty
// LocatorRef in every scenario resolves to a locator in the set. It
// returns the first violation found.
func ValidateRefs(scenarios []Scenario, locators []Locator) error {
	idx := LocatorIndex(locators)
	for _, sc := range scenarios {
		for i, st := range sc.Steps {
			if st.LocatorRef == "" {
				continue
			}
			if _, ok := idx[st.LocatorRef]; !ok {
				return fmt.Errorf("scenario %q step %d: locator ref %q does not resolve", sc.Title, i, st.LocatorRef)
			}
		}
	}
	return nil
}
