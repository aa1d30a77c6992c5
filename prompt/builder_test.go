package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloom/agentloom/core"
)

func TestEnhanceInjectsByCapability(t *testing.T) {
	cfg := core.AgentConfig{
		Name:        "supervisor",
		Role:        core.RoleSupervisor,
		CanDelegate: true,
		CanFinalize: true,
	}
	out := Enhance(cfg)

	assert.Contains(t, out.SystemMessage, "[ACTION: delegate to worker_name]")
	assert.Contains(t, out.SystemMessage, "[ACTION: final]")
	assert.NotContains(t, out.SystemMessage, "[TOOL:", "tool instructions need CanUseTools")
}

func TestEnhanceToolCapability(t *testing.T) {
	cfg := core.AgentConfig{Name: "worker", Role: core.RoleWorker, CanUseTools: true}
	out := Enhance(cfg)

	assert.Contains(t, out.SystemMessage, "[TOOL: tool_name]")
	assert.NotContains(t, out.SystemMessage, "delegate to")
}

func TestEnhanceIdempotent(t *testing.T) {
	cfg := core.AgentConfig{
		Name:        "supervisor",
		Role:        core.RoleSupervisor,
		CanDelegate: true,
	}
	once := Enhance(cfg)
	twice := Enhance(once)
	assert.Equal(t, once.SystemMessage, twice.SystemMessage)
	assert.Equal(t, 1, strings.Count(twice.SystemMessage, "## Decision Format"))
}

func TestEnhancePreservesExistingInstructions(t *testing.T) {
	cfg := core.AgentConfig{
		Name:          "custom",
		CanDelegate:   true,
		SystemMessage: "You can delegate to anyone you like, in your own format.",
	}
	out := Enhance(cfg)
	assert.Equal(t, cfg.SystemMessage, out.SystemMessage)
}

func TestEnhanceSkipFlag(t *testing.T) {
	cfg := core.AgentConfig{Name: "raw", CanFinalize: true, SkipEnhance: true, SystemMessage: "plain"}
	out := Enhance(cfg)
	assert.Equal(t, "plain", out.SystemMessage)
}

func TestEnhanceDoesNotMutateInput(t *testing.T) {
	cfg := core.AgentConfig{Name: "a", CanFinalize: true, SystemMessage: "original"}
	_ = Enhance(cfg)
	assert.Equal(t, "original", cfg.SystemMessage)
}

func TestRenderSubstitutesAndSeals(t *testing.T) {
	out := Render("Q: {input}\nCtx: {context}\nPass {iteration}", Data{Input: "why?", Iteration: 2})

	assert.Contains(t, out, "Q: why?")
	assert.Contains(t, out, "Ctx: "+Sentinel)
	assert.Contains(t, out, "Pass 2")
}

func TestRenderWorkerOutputsSorted(t *testing.T) {
	out := Render("{worker_outputs}", Data{WorkerOutputs: map[string]string{
		"writer":     "draft done",
		"researcher": "facts found",
	}})
	require.Less(t, strings.Index(out, "researcher"), strings.Index(out, "writer"))
	assert.Contains(t, out, "researcher: facts found")
}

func TestRenderEmptyCollections(t *testing.T) {
	out := Render("{worker_outputs}|{previous_outputs}", Data{})
	assert.Equal(t, "No worker outputs yet|No previous outputs", out)
}

func TestRenderUnknownPlaceholderPassesThrough(t *testing.T) {
	out := Render("keep {custom_marker} as is", Data{})
	assert.Contains(t, out, "{custom_marker}")
}

func TestRenderNeverLeaksPlaceholders(t *testing.T) {
	all := "{input} {context} {worker_outputs} {previous_outputs} {hub_output} " +
		"{retrieved_information} {iteration} {available_agents} {available_tools} " +
		"{previous_decisions} {make_decision}"
	out := Render(all, Data{})
	for _, ph := range []string{"{input}", "{context}", "{hub_output}", "{make_decision}"} {
		assert.NotContains(t, out, ph)
	}
}

func TestDecisionInstructionsMenu(t *testing.T) {
	menu := DecisionInstructions(core.AgentConfig{
		Role:        core.RoleSupervisor,
		CanDelegate: true,
		CanFinalize: true,
	})
	assert.Contains(t, menu, "delegate to worker_name")
	assert.Contains(t, menu, "[ACTION: final]")
}
