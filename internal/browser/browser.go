// Package browser defines the automation tool capability set consumed
// by the navigation agent, and its headless Chrome implementation.
package browser

import "context"

// Tool is the capability set the navigation agent drives. Targets are
// CSS selectors. Every call may fail with a *ToolError; Click and Type
// return a *NoTargetError when nothing on the current page matches the
// target.
type Tool interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, target string) error
	Type(ctx context.Context, target, value string) error
	Snapshot(ctx context.Context) (string, error)
}

// Session is a Tool bound to one live browser. It is scoped to a
// single run: acquired before navigation starts and released as soon
// as navigation ends, success or failure.
type Session interface {
	Tool
	Close(ctx context.Context) error
}

// Factory acquires a fresh Session per run.
type Factory interface {
	Acquire(ctx context.Context) (Session, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Session, error)

// Acquire calls f.
func (f FactoryFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }
