// Package prompt turns an agent's declared role and capabilities into
// instruction text and fills runtime placeholders in prompt templates. All
// functions are pure and never fail: a template always renders to usable
// text, with missing data replaced by an explicit sentinel.
package prompt

import (
	"strings"

	"github.com/agentloom/agentloom/core"
)

// decisionKeywords mark a system message that already carries decision-format
// instructions; Enhance must not inject a second block.
var decisionKeywords = []string{
	"delegate to",
	"you can decide to",
	"you can use tools",
	"you can provide a final",
	"[ACTION:",
	"[TOOL:",
	"decision format",
	"Following this format",
}

// Enhance returns a copy of cfg whose system message carries the
// decision-format instruction block matching the agent's capability flags.
// It is idempotent: a system message that already contains decision
// instructions (detected by keyword scan) is left untouched, as is any agent
// with SkipEnhance set.
func Enhance(cfg core.AgentConfig) core.AgentConfig {
	out := cfg
	if cfg.SkipEnhance || HasDecisionInstructions(cfg.SystemMessage) {
		return out
	}
	block := SystemInstructions(cfg)
	if out.SystemMessage != "" {
		out.SystemMessage = out.SystemMessage + "\n\n" + block
	} else {
		out.SystemMessage = block
	}
	return out
}

// HasDecisionInstructions reports whether text already explains the decision
// format.
func HasDecisionInstructions(text string) bool {
	for _, kw := range decisionKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// SystemInstructions builds the decision-making instruction block for an
// agent, gated on its capability flags.
func SystemInstructions(cfg core.AgentConfig) string {
	supervisor := cfg.Role == core.RoleSupervisor
	lines := []string{
		"## Agentic Decision Making",
		"You are an agentic AI that can make autonomous decisions about how to best accomplish tasks.",
	}
	if cfg.CanDelegate {
		if supervisor {
			lines = append(lines, "- You can delegate tasks to specialized workers by specifying [ACTION: delegate to worker_name]")
		} else {
			lines = append(lines, "- You can delegate to other agents by specifying [ACTION: delegate to agent_name]")
		}
	}
	if cfg.CanUseTools {
		lines = append(lines, "- You can use tools by specifying [TOOL: tool_name] followed by the parameters in JSON format")
	}
	if cfg.CanFinalize {
		lines = append(lines, "- You can provide a final answer by specifying [ACTION: final]")
	}

	lines = append(lines, "", "## Decision Format", "When making a decision, use this format:")
	if cfg.CanDelegate {
		lines = append(lines, `
To delegate:
[ACTION: delegate to agent_name]
[CONTENT:
Your message to the agent, explaining what you want them to do.
]`)
	}
	if cfg.CanUseTools {
		lines = append(lines, `
To use a tool:
[TOOL: tool_name]
{
    "param1": "value1",
    "param2": "value2"
}
[/TOOL]`)
	}
	if cfg.CanFinalize {
		lines = append(lines, `
To provide a final answer:
[ACTION: final]
Your final answer or conclusion here.`)
	}
	lines = append(lines, "", "You should make your own decisions about which action to take based on the context and user query.")
	return strings.Join(lines, "\n")
}

// DecisionInstructions builds the short action menu substituted for the
// {make_decision} placeholder inside a prompt template.
func DecisionInstructions(cfg core.AgentConfig) string {
	supervisor := cfg.Role == core.RoleSupervisor
	lines := []string{"Based on the above, choose one of the following actions:"}
	if cfg.CanDelegate {
		if supervisor {
			lines = append(lines, "- Delegate to a worker agent by writing [ACTION: delegate to worker_name]")
		} else {
			lines = append(lines, "- Delegate to another agent by writing [ACTION: delegate to agent_name]")
		}
	}
	if cfg.CanUseTools {
		lines = append(lines, "- Use a tool by writing [TOOL: tool_name] followed by parameters in JSON")
	}
	if cfg.CanFinalize {
		lines = append(lines, "- Provide a final answer by writing [ACTION: final]")
	}
	return strings.Join(lines, "\n")
}
