package ports

import "context"

// ScriptRunner executes a named callback in the host's scripting environment.
type ScriptRunner interface {
	RunScript(ctx context.Context, name, param string) error
}

// Notifier surfaces a message to the user.
type Notifier interface {
	ShowMessage(ctx context.Context, text string) error
}

// ScriptFunc adapts a function to ScriptRunner.
type ScriptFunc func(ctx context.Context, name, param string) error

// RunScript calls f(ctx, name, param).
func (f ScriptFunc) RunScript(ctx context.Context, name, param string) error {
	return f(ctx, name, param)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(ctx context.Context, text string) error

// ShowMessage calls f(ctx, text).
func (f NotifyFunc) ShowMessage(ctx context.Context, text string) error {
	return f(ctx, text)
}
