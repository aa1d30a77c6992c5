package core

import "fmt"

// ConfigError reports an invalid workflow configuration. Configuration
// problems fail fast: they surface before any agent is invoked and abort the
// run, unlike per-agent runtime errors which are absorbed into state.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "workflow config: " + e.Msg }

// Configf builds a ConfigError with a formatted message.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// InvocationError wraps a model invocation failure for one agent. It is
// recorded as that agent's error output and never aborts the run.
type InvocationError struct {
	Agent string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s: model invocation failed: %v", e.Agent, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
