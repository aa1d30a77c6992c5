// Package tool provides the registry of callable tools and the validation
// layer that sits between agent decisions and tool handlers.
package tool

import "context"

// Parameter describes a single named input to a tool. Order matters for
// rendering tool documentation into prompts, so definitions carry parameters
// as an ordered slice rather than a map.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Handler executes a tool with validated parameters.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Definition is a registered tool.
type Definition struct {
	Name                 string
	Description          string
	Parameters           []Parameter
	Handler              Handler
	RequiresConfirmation bool
	AlwaysAvailable      bool
}

// Result is the envelope every execution returns. Exactly one of Value and
// Error is meaningful, selected by Success.
type Result struct {
	Value         any     `json:"result,omitempty"`
	Error         string  `json:"error,omitempty"`
	Success       bool    `json:"success"`
	ExecutionTime float64 `json:"execution_time"`
}
