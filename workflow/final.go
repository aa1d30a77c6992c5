package workflow

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentloom/agentloom/core"
)

// noOutputMessage is surfaced when a run completes without any agent output.
const noOutputMessage = "No output was generated by any agent."

var tagRe = regexp.MustCompile(`(?is)\[TOOL:?[^\]]*\].*?(?:\[/TOOL\]|\z)|\[(?:ACTION|CONTENT):?[^\]]*\]|\[/TOOL\]`)

// stripTags removes decision-format markers, tool parameter bodies included,
// so they never leak into the final answer.
func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// finalNode derives the run's answer. Hub-and-spoke swarms synthesize spoke
// outputs through one more hub invocation; its failure is the only per-agent
// failure that marks the whole run failed. Every other topology falls back
// through decision content to a labeled concatenation of outputs.
func (ex *execution) finalNode(ctx context.Context, state *core.WorkflowState) *core.Result {
	r := ex.runner
	state = state.Clone()

	if r.cfg.Topology == core.TopologySwarm && r.cfg.Interaction == core.InteractionHubAndSpoke {
		if err := ex.hubSynthesis(ctx, state); err != nil {
			state.AppendHistory(core.HistoryEntry{
				Agent:  r.cfg.HubAgent,
				Action: core.ActionError,
				Err:    err.Error(),
			})
			res := ex.buildResult(state)
			res.Success = false
			res.Error = fmt.Sprintf("final synthesis failed: %v", err)
			return res
		}
	}

	if state.FinalOutput == "" {
		state.FinalOutput = ex.deriveFinalOutput(state)
	}
	state.AppendHistory(core.HistoryEntry{
		Agent:  core.FinalNode,
		Action: core.ActionFinalOutput,
	})
	return ex.buildResult(state)
}

// hubSynthesis asks the hub to combine every spoke contribution into one
// answer.
func (ex *execution) hubSynthesis(ctx context.Context, state *core.WorkflowState) error {
	r := ex.runner
	cfg := r.agents[r.cfg.HubAgent]

	var b strings.Builder
	b.WriteString("Original task: " + state.Input + "\n\nSpecialist contributions:\n")
	for _, a := range r.cfg.Agents {
		if a.Name == r.cfg.HubAgent {
			continue
		}
		if st, ok := state.Agents[a.Name]; ok && st.Output != "" && st.Err == "" {
			b.WriteString(fmt.Sprintf("\n%s:\n%s\n", a.Name, st.Output))
		}
	}
	b.WriteString("\nSynthesize these contributions into a single coherent answer.")

	resp, err := ex.generate(ctx, core.GenerateRequest{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Prompt:        b.String(),
		SystemMessage: cfg.SystemMessage,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
	})
	if err != nil {
		return err
	}
	ex.recordUsage(core.AgentUsage{
		Agent:        cfg.Name,
		Role:         cfg.Role,
		Model:        cfg.Model,
		OutputLength: len(resp.Content),
		Iteration:    state.Iteration,
	})
	state.FinalOutput = stripTags(resp.Content)
	state.Agent(cfg.Name).Output = resp.Content
	return nil
}

// deriveFinalOutput walks the fallback chain: latest final decision, latest
// respond content, labeled concatenation, explicit no-output message.
func (ex *execution) deriveFinalOutput(state *core.WorkflowState) string {
	for i := len(state.Decisions) - 1; i >= 0; i-- {
		d := state.Decisions[i]
		if d.Kind == core.DecisionFinal && d.Content != "" {
			return stripTags(d.Content)
		}
	}
	for i := len(state.Decisions) - 1; i >= 0; i-- {
		d := state.Decisions[i]
		if d.Kind == core.DecisionRespond && d.Content != "" {
			return stripTags(d.Content)
		}
	}

	names := make([]string, 0, len(state.Agents))
	for name, a := range state.Agents {
		if a.Output != "" && a.Err == "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", name, stripTags(state.Agents[name].Output)))
		}
		return strings.Join(parts, "\n\n")
	}
	return noOutputMessage
}
