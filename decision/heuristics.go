package decision

import (
	"regexp"
	"strings"

	"github.com/agentloom/agentloom/core"
)

var finalityPhrases = []string{
	"final answer",
	"in conclusion",
	"to summarize",
	"in summary",
	"my final response",
	"the answer is",
}

var toolUsageRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i will use the (\w+) tool`),
	regexp.MustCompile(`(?i)using the (\w+) tool`),
	regexp.MustCompile(`(?i)let me (\w+) this`),
	regexp.MustCompile(`(?i)i'll (\w+) this`),
}

// inferDelegation scans for conversational hand-off phrasing naming a known
// agent. Patterns are checked per agent in registration order so earlier
// agents win ties.
func inferDelegation(text, agentName string, ctx Context) (core.Decision, bool) {
	for _, target := range ctx.AvailableAgents {
		if target == agentName {
			continue
		}
		quoted := regexp.QuoteMeta(target)
		patterns := []string{
			`(?i)\bask\s+` + quoted + `\b`,
			`(?i)\bdelegate\s+to\s+` + quoted + `\b`,
			`(?i)\blet\s+` + quoted + `\b`,
			`(?i)\bhave\s+` + quoted + `\b`,
			`(?i)\b` + quoted + `\s+(?:should|will|can)\b`,
			`(?i)\bpass\s+to\s+` + quoted + `\b`,
			`(?i)\bhand\s+(?:this|it)\s+(?:over|off)\s+to\s+` + quoted + `\b`,
			`(?i)\bhand\s+(?:(?:this|it)\s+)?to\s+` + quoted + `\b`,
		}
		for _, p := range patterns {
			if regexp.MustCompile(p).MatchString(text) {
				return core.Decision{
					Agent:     agentName,
					Kind:      core.DecisionDelegate,
					Target:    target,
					Content:   text,
					Reasoning: "Response language suggests delegation to " + target,
				}, true
			}
		}
	}
	return core.Decision{}, false
}

// inferFinality detects conclusion phrasing without an explicit tag.
func inferFinality(text, agentName string) (core.Decision, bool) {
	lowered := strings.ToLower(text)
	for _, phrase := range finalityPhrases {
		if strings.Contains(lowered, phrase) {
			return core.Decision{
				Agent:     agentName,
				Kind:      core.DecisionFinal,
				Content:   text,
				Reasoning: "Response language indicates a concluding answer",
			}, true
		}
	}
	return core.Decision{}, false
}

// inferToolUsage matches tool-intent phrasing and accepts the captured word
// only when it names (or is contained in) a tool the agent actually has.
func inferToolUsage(text, agentName string, ctx Context) (core.Decision, bool) {
	for _, re := range toolUsageRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.ToLower(m[1])
		for _, tool := range ctx.ToolsAvailable {
			lowered := strings.ToLower(tool)
			if lowered == candidate || strings.Contains(lowered, candidate) {
				return core.Decision{
					Agent:      agentName,
					Kind:       core.DecisionUseTool,
					ToolName:   tool,
					ToolParams: map[string]any{},
					Content:    text,
					Reasoning:  "Response language suggests using tool: " + tool,
				}, true
			}
		}
	}
	return core.Decision{}, false
}

// roleDefault is the last rule before the plain-respond fallback: supervisors
// delegate to their first worker on the opening pass and finalize afterwards;
// subordinate roles route back to whoever coordinates them.
func roleDefault(text, agentName string, role core.Role, ctx Context) (core.Decision, bool) {
	switch role {
	case core.RoleSupervisor:
		if ctx.Iteration == 0 && len(ctx.Workers) > 0 {
			return core.Decision{
				Agent:     agentName,
				Kind:      core.DecisionDelegate,
				Target:    ctx.Workers[0],
				Content:   text,
				Reasoning: "Supervisor default: delegate the first pass to a worker",
			}, true
		}
		return core.Decision{
			Agent:     agentName,
			Kind:      core.DecisionFinal,
			Content:   text,
			Reasoning: "Supervisor default: conclude after worker passes",
		}, true
	case core.RoleWorker, core.RoleSpoke, core.RolePeer:
		if target, ok := coordinatorFor(agentName, ctx); ok {
			return core.Decision{
				Agent:     agentName,
				Kind:      core.DecisionDelegate,
				Target:    target,
				Content:   text,
				Reasoning: "Subordinate default: return control to " + target,
			}, true
		}
	}
	return core.Decision{}, false
}

func coordinatorFor(agentName string, ctx Context) (string, bool) {
	for _, a := range ctx.AvailableAgents {
		if a == agentName {
			continue
		}
		if ctx.AgentRoles[a] == core.RoleSupervisor {
			return a, true
		}
	}
	if ctx.HubAgent != "" && ctx.HubAgent != agentName {
		return ctx.HubAgent, true
	}
	return "", false
}
