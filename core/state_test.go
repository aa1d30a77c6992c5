package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStateCloneIsolation(t *testing.T) {
	s := NewWorkflowState("question")
	s.CurrentAgent = "supervisor"
	s.Agent("supervisor").Output = "thinking"
	s.Graph.AddEdge("supervisor", "worker")
	s.AppendHistory(HistoryEntry{Agent: "supervisor", Action: ActionRoute, Target: "worker"})
	s.Decisions = append(s.Decisions, Decision{
		Agent:      "supervisor",
		Kind:       DecisionUseTool,
		ToolParams: map[string]any{"query": "original"},
	})

	c := s.Clone()
	c.Agent("supervisor").Output = "changed"
	c.Graph.AddEdge("worker", "supervisor")
	c.Decisions[0].ToolParams["query"] = "mutated"
	c.Iteration = 7

	assert.Equal(t, "thinking", s.Agent("supervisor").Output)
	assert.False(t, s.Graph.Has("worker", "supervisor"))
	assert.Equal(t, "original", s.Decisions[0].ToolParams["query"])
	assert.Equal(t, 0, s.Iteration)
}

func TestAgentLazyCreation(t *testing.T) {
	s := NewWorkflowState("q")
	a := s.Agent("new")
	require.NotNil(t, a)
	a.Output = "hello"
	assert.Equal(t, "hello", s.Agents["new"].Output)
}

func TestAgentNamesSorted(t *testing.T) {
	s := NewWorkflowState("q")
	s.Agent("zeta")
	s.Agent("alpha")
	s.Agent("mid")
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.AgentNames())
}

func TestAppendHistoryStampsTime(t *testing.T) {
	s := NewWorkflowState("q")
	s.AppendHistory(HistoryEntry{Action: ActionRoute})
	require.Len(t, s.History, 1)
	assert.False(t, s.History[0].Timestamp.IsZero())
}
