package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentloom/agentloom/core"
)

// Sentinel replaces any placeholder that stays unresolved after rendering, so
// no template marker ever reaches a model.
const Sentinel = "not available"

// ToolInfo describes a tool for the {available_tools} placeholder.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Data supplies the runtime values substituted into a prompt template.
type Data struct {
	Input             string
	Context           string
	WorkerOutputs     map[string]string
	PreviousOutputs   map[string]string
	HubOutput         string
	Retrieved         string
	Iteration         int
	AvailableAgents   []string
	AvailableTools    []ToolInfo
	PreviousDecisions []core.Decision
	MakeDecision      string
}

// placeholders is the fixed substitution set; anything outside it passes
// through untouched.
var placeholders = []string{
	"{input}",
	"{context}",
	"{worker_outputs}",
	"{previous_outputs}",
	"{hub_output}",
	"{retrieved_information}",
	"{iteration}",
	"{available_agents}",
	"{available_tools}",
	"{previous_decisions}",
	"{make_decision}",
}

// Render substitutes the fixed placeholder set into template. Placeholders
// with no data become an explicit sentinel instead of dangling. Render never
// fails.
func Render(template string, data Data) string {
	out := template
	out = strings.ReplaceAll(out, "{input}", orSentinel(data.Input))
	out = strings.ReplaceAll(out, "{context}", orSentinel(data.Context))
	out = strings.ReplaceAll(out, "{worker_outputs}", labeled(data.WorkerOutputs, "No worker outputs yet"))
	out = strings.ReplaceAll(out, "{previous_outputs}", labeled(data.PreviousOutputs, "No previous outputs"))
	out = strings.ReplaceAll(out, "{hub_output}", orSentinel(data.HubOutput))
	out = strings.ReplaceAll(out, "{retrieved_information}", orSentinel(data.Retrieved))
	out = strings.ReplaceAll(out, "{iteration}", strconv.Itoa(data.Iteration))
	out = strings.ReplaceAll(out, "{available_agents}", agentList(data.AvailableAgents))
	out = strings.ReplaceAll(out, "{available_tools}", toolList(data.AvailableTools))
	out = strings.ReplaceAll(out, "{previous_decisions}", decisionList(data.PreviousDecisions))
	out = strings.ReplaceAll(out, "{make_decision}", orSentinel(data.MakeDecision))

	// Seal any placeholder a caller left unfilled through a partial Data.
	for _, ph := range placeholders {
		out = strings.ReplaceAll(out, ph, Sentinel)
	}
	return out
}

func orSentinel(s string) string {
	if s == "" {
		return Sentinel
	}
	return s
}

func labeled(outputs map[string]string, empty string) string {
	if len(outputs) == 0 {
		return empty
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, outputs[name]))
	}
	return strings.Join(parts, "\n\n")
}

func agentList(agents []string) string {
	if len(agents) == 0 {
		return Sentinel
	}
	var b strings.Builder
	b.WriteString("Available agents:\n")
	for _, a := range agents {
		b.WriteString("- " + a + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func toolList(tools []ToolInfo) string {
	if len(tools) == 0 {
		return Sentinel
	}
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
		if len(t.Parameters) > 0 {
			if raw, err := json.Marshal(t.Parameters); err == nil {
				b.WriteString(fmt.Sprintf("  Parameters: %s\n", raw))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func decisionList(decisions []core.Decision) string {
	if len(decisions) == 0 {
		return Sentinel
	}
	var b strings.Builder
	b.WriteString("Previous decisions:\n")
	for i, d := range decisions {
		b.WriteString(fmt.Sprintf("%d. Agent '%s' decided to %s", i+1, d.Agent, d.Kind))
		switch {
		case d.Kind == core.DecisionDelegate && d.Target != "":
			b.WriteString(" to " + d.Target)
		case d.Kind == core.DecisionUseTool && d.ToolName != "":
			b.WriteString(fmt.Sprintf(" tool '%s'", d.ToolName))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
