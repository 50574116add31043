package browser

import "fmt"

// ToolError reports a failed automation call. It is retryable: the
// caller repeats the same invocation a bounded number of times before
// giving up.
type ToolError struct {
	Op     string
	Target string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("browser %s %q: %v", e.Op, e.Target, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NoTargetError means the current page has no actionable element
// matching the decision's target. It is not retryable: the navigation
// loop treats it as inability to make progress and terminates.
type NoTargetError struct {
	Target string
}

func (e *NoTargetError) Error() string {
	return fmt.Sprintf("no actionable element matches %q", e.Target)
}
