package core

import (
	"sort"
	"time"
)

// FinalNode is the reserved routing target that terminates a run.
const FinalNode = "final"

// RouterNode is the reserved node name used in audit history.
const RouterNode = "router"

// Message is one entry in an agent's conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "tool"
	Content string `json:"content"`
}

// AgentState holds the per-agent slice of a run: its conversation, pending
// routing target, tool usage and outputs. It is owned exclusively by the
// WorkflowState that contains it.
type AgentState struct {
	Role      Role      `json:"role"`
	Messages  []Message `json:"messages"`
	NextAgent string    `json:"next_agent,omitempty"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
	Output    string    `json:"output,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// Clone deep-copies the agent state.
func (a *AgentState) Clone() *AgentState {
	out := &AgentState{
		Role:      a.Role,
		NextAgent: a.NextAgent,
		Output:    a.Output,
		Err:       a.Err,
	}
	out.Messages = append([]Message(nil), a.Messages...)
	out.ToolsUsed = append([]string(nil), a.ToolsUsed...)
	return out
}

// HistoryEntry is one audit record of routing activity.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent,omitempty"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// Routing history actions.
const (
	ActionRoute         = "route"
	ActionError         = "error"
	ActionMaxIterations = "max_iterations_reached"
	ActionSubstituted   = "target_substituted"
	ActionCanceled      = "canceled"
	ActionFinalOutput   = "final_output"
)

// WorkflowState is the complete mutable state of one run. It is created once
// from the input query and topology, transformed only by the router, agent
// and final transition functions (each operating on a clone), and discarded
// after the result is extracted.
type WorkflowState struct {
	Agents       map[string]*AgentState `json:"agents"`
	Input        string                 `json:"input"`
	CurrentAgent string                 `json:"current_agent"`
	Iteration    int                    `json:"iteration"`
	History      []HistoryEntry         `json:"history"`
	Graph        *ExecutionGraph        `json:"execution_graph"`
	FinalOutput  string                 `json:"final_output,omitempty"`
	Decisions    []Decision             `json:"decisions,omitempty"`
}

// NewWorkflowState builds an empty state for the given input query.
func NewWorkflowState(input string) *WorkflowState {
	return &WorkflowState{
		Agents: make(map[string]*AgentState),
		Input:  input,
		Graph:  NewExecutionGraph(),
	}
}

// Clone deep-copies the workflow state. Transition functions clone before
// mutating so earlier snapshots (checkpoints, in-flight reads) stay stable.
func (s *WorkflowState) Clone() *WorkflowState {
	out := &WorkflowState{
		Agents:       make(map[string]*AgentState, len(s.Agents)),
		Input:        s.Input,
		CurrentAgent: s.CurrentAgent,
		Iteration:    s.Iteration,
		FinalOutput:  s.FinalOutput,
	}
	for name, a := range s.Agents {
		out.Agents[name] = a.Clone()
	}
	out.History = append([]HistoryEntry(nil), s.History...)
	for _, d := range s.Decisions {
		out.Decisions = append(out.Decisions, d.Clone())
	}
	if s.Graph != nil {
		out.Graph = s.Graph.Clone()
	} else {
		out.Graph = NewExecutionGraph()
	}
	return out
}

// Agent returns the state for name, creating an empty record on first use.
func (s *WorkflowState) Agent(name string) *AgentState {
	a, ok := s.Agents[name]
	if !ok {
		a = &AgentState{}
		s.Agents[name] = a
	}
	return a
}

// AppendHistory records an audit entry in causal order.
func (s *WorkflowState) AppendHistory(e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.History = append(s.History, e)
}

// AgentNames returns the agent names in deterministic (sorted) order.
func (s *WorkflowState) AgentNames() []string {
	names := make([]string, 0, len(s.Agents))
	for name := range s.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
