package decision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agentloom/agentloom/core"
)

// Strict tag grammar. These patterns are the authoritative protocol between
// agents and the orchestrator; the natural-language tier only runs when none
// of them match.
var (
	actionRe   = regexp.MustCompile(`(?i)\[ACTION:?\s*([^\]]+)\]`)
	delegateRe = regexp.MustCompile(`(?i)delegate(?:\s+to)?\s+([A-Za-z0-9_]+)`)
	contentRe  = regexp.MustCompile(`(?is)\[CONTENT:?\s*(.*?)\]`)
	toolRe     = regexp.MustCompile(`(?is)\[TOOL:?\s*([^\]]+)\](.*?)(?:\[/TOOL\]|\z)`)
	kvRe       = regexp.MustCompile(`(\w+)\s*:\s*([^,\n]+)`)
)

var completionKeywords = []string{"final", "complete", "done", "finish"}

// parseActionTag handles [ACTION: delegate to X] and [ACTION: final].
func parseActionTag(text, agentName string, ctx Context) (core.Decision, bool) {
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return core.Decision{}, false
	}
	action := strings.TrimSpace(m[1])

	if dm := delegateRe.FindStringSubmatch(action); dm != nil {
		if target, ok := resolveAgent(dm[1], ctx.AvailableAgents); ok {
			content := text
			if cm := contentRe.FindStringSubmatch(text); cm != nil {
				content = strings.TrimSpace(cm[1])
			}
			return core.Decision{
				Agent:     agentName,
				Kind:      core.DecisionDelegate,
				Target:    target,
				Content:   content,
				Reasoning: "Agent explicitly requested delegation to " + target,
			}, true
		}
	}

	lowered := strings.ToLower(action)
	for _, kw := range completionKeywords {
		if strings.Contains(lowered, kw) {
			return core.Decision{
				Agent:     agentName,
				Kind:      core.DecisionFinal,
				Content:   text,
				Reasoning: "Agent explicitly marked this as the final response",
			}, true
		}
	}
	return core.Decision{}, false
}

// parseToolTag handles [TOOL: name] … [/TOOL]. Parameters are parsed as JSON
// first, then permissively as key: value lines.
func parseToolTag(text, agentName string) (core.Decision, bool) {
	m := toolRe.FindStringSubmatch(text)
	if m == nil {
		return core.Decision{}, false
	}
	name := strings.TrimSpace(m[1])
	raw := strings.TrimSpace(m[2])

	params := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			params = map[string]any{}
			for _, kv := range kvRe.FindAllStringSubmatch(raw, -1) {
				params[strings.TrimSpace(kv[1])] = strings.TrimSpace(kv[2])
			}
		}
	}
	return core.Decision{
		Agent:      agentName,
		Kind:       core.DecisionUseTool,
		ToolName:   name,
		ToolParams: params,
		Content:    text,
		Reasoning:  "Agent explicitly requested to use tool: " + name,
	}, true
}

// resolveAgent validates a requested target against the known agents,
// matching case-insensitively but returning the canonical name.
func resolveAgent(requested string, available []string) (string, bool) {
	for _, a := range available {
		if strings.EqualFold(a, requested) {
			return a, true
		}
	}
	return "", false
}
