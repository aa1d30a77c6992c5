package core

// DecisionKind discriminates the closed set of actions an agent can request.
// The router switches exhaustively over these values.
type DecisionKind string

const (
	// DecisionDelegate hands control to another agent.
	DecisionDelegate DecisionKind = "delegate"
	// DecisionUseTool invokes a registered tool and stays with the agent.
	DecisionUseTool DecisionKind = "use_tool"
	// DecisionRespond emits plain output with no routing request.
	DecisionRespond DecisionKind = "respond"
	// DecisionFinal marks the agent's output as the final answer.
	DecisionFinal DecisionKind = "final"
)

// Decision is the structured interpretation of an agent's free-text reply.
// Exactly one Kind applies; Target is set for delegate, ToolName/ToolParams
// for use_tool, Content for the payload carried forward.
type Decision struct {
	Agent      string         `json:"agent"`
	Kind       DecisionKind   `json:"kind"`
	Target     string         `json:"target,omitempty"`
	Content    string         `json:"content,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

// Clone returns a deep copy so a recorded decision log cannot alias live
// parser output.
func (d Decision) Clone() Decision {
	out := d
	if d.ToolParams != nil {
		out.ToolParams = make(map[string]any, len(d.ToolParams))
		for k, v := range d.ToolParams {
			out.ToolParams[k] = v
		}
	}
	return out
}
