package workflow

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/toolkit"
)

// Hybrid coordination runs teams and peers outside the router loop: each
// coordination mode is its own schedule over the declared units, ending in a
// synthesis pass by the final agent.

var delegationMarkerRe = regexp.MustCompile(`(?i)\b(?:DELEGATING\s+TO|ASSIGN\s+TO|DELEGATE)\s*:?\s*([A-Za-z0-9_]+)`)

var stopMarkerRe = regexp.MustCompile(`\bSTOP\b`)

// unit is one schedulable element of a hybrid run: a whole team or a single
// peer.
type unit struct {
	name string
	team *core.TeamConfig
	peer *core.AgentConfig
}

func (ex *execution) hybridUnits() []unit {
	var units []unit
	for i := range ex.runner.cfg.Teams {
		t := &ex.runner.cfg.Teams[i]
		units = append(units, unit{name: t.Supervisor.Name, team: t})
	}
	for i := range ex.runner.cfg.Peers {
		p := &ex.runner.cfg.Peers[i]
		units = append(units, unit{name: p.Name, peer: p})
	}
	return units
}

func (ex *execution) runHybrid(ctx context.Context, input string) *core.Result {
	r := ex.runner
	state := core.NewWorkflowState(input)
	for _, name := range r.order {
		state.Agent(name).Role = r.agents[name].Role
	}

	switch r.cfg.Coordination {
	case core.CoordinationParallel:
		ex.hybridParallel(ctx, state)
	case core.CoordinationDynamic:
		ex.hybridDynamic(ctx, state)
	case core.CoordinationIterative:
		ex.hybridIterative(ctx, state)
	default:
		ex.hybridSequential(ctx, state)
	}

	if err := ctx.Err(); err != nil {
		state.AppendHistory(core.HistoryEntry{Agent: core.RouterNode, Action: core.ActionCanceled, Err: err.Error()})
		res := ex.buildResult(state)
		res.Success = false
		res.Error = err.Error()
		return res
	}

	if err := ex.hybridSynthesis(ctx, state); err != nil {
		state.AppendHistory(core.HistoryEntry{Action: core.ActionError, Err: err.Error()})
		res := ex.buildResult(state)
		res.Success = false
		res.Error = fmt.Sprintf("final synthesis failed: %v", err)
		return res
	}
	state.AppendHistory(core.HistoryEntry{Agent: core.FinalNode, Action: core.ActionFinalOutput})
	return ex.buildResult(state)
}

// hybridSequential processes every unit in declaration order, each seeing the
// outputs accumulated so far.
func (ex *execution) hybridSequential(ctx context.Context, state *core.WorkflowState) {
	for _, u := range ex.hybridUnits() {
		if ctx.Err() != nil {
			return
		}
		ex.runUnit(ctx, state, u, ex.collectOutputs(state))
	}
}

// hybridParallel fans all units out concurrently; none sees another's output
// before the join.
func (ex *execution) hybridParallel(ctx context.Context, state *core.WorkflowState) {
	units := ex.hybridUnits()
	baseHistory := len(state.History)
	tasks := make([]func(ctx context.Context) (*core.WorkflowState, error), len(units))
	for i, u := range units {
		u := u
		// Each task works on its own clone; the join folds agent records back
		// into the shared state.
		tasks[i] = func(ctx context.Context) (*core.WorkflowState, error) {
			branch := state.Clone()
			ex.runUnit(ctx, branch, u, nil)
			return branch, nil
		}
	}
	results := toolkit.FanOut(ctx, ex.runner.fanoutLimit, tasks)
	for i, res := range results {
		if res.Err != nil || res.Value == nil {
			continue
		}
		for _, name := range ex.unitAgents(units[i]) {
			state.Agents[name] = res.Value.Agents[name]
		}
		state.History = append(state.History, res.Value.History[baseHistory:]...)
		if u := units[i]; u.team != nil {
			for _, w := range u.team.Workers {
				state.Graph.AddEdge(u.team.Supervisor.Name, w.Name)
			}
		}
	}
}

// hybridDynamic starts at the coordinator and follows delegation markers in
// each reply, visiting every agent at most once.
func (ex *execution) hybridDynamic(ctx context.Context, state *core.WorkflowState) {
	r := ex.runner
	visited := make(map[string]bool)
	current := r.cfg.Coordinator

	for current != "" && !visited[current] {
		if ctx.Err() != nil {
			return
		}
		visited[current] = true
		cfg := r.agents[current]
		out, err := ex.invokeHybridAgent(ctx, state, cfg, ex.collectOutputs(state))
		if err != nil {
			break
		}

		next := ""
		for _, m := range delegationMarkerRe.FindAllStringSubmatch(out, -1) {
			if name, ok := ex.resolveHybridAgent(m[1]); ok && !visited[name] {
				next = name
				break
			}
		}
		if next != "" {
			state.Graph.AddEdge(current, next)
			state.AppendHistory(core.HistoryEntry{Agent: current, Action: core.ActionRoute, Target: next})
		}
		current = next
	}
}

// hybridIterative runs bounded rounds where every unit sees the previous
// round's outputs. Rounds stop early on a STOP marker or when consecutive
// rounds converge.
func (ex *execution) hybridIterative(ctx context.Context, state *core.WorkflowState) {
	r := ex.runner
	units := ex.hybridUnits()
	var prevRound string

	for round := 1; round <= r.cfg.MaxRounds; round++ {
		if ctx.Err() != nil {
			return
		}
		before := ex.collectOutputs(state)
		stop := false
		for _, u := range units {
			out := ex.runUnit(ctx, state, u, before)
			if stopMarkerRe.MatchString(out) {
				stop = true
			}
		}
		state.Iteration = round
		if stop {
			r.logger.Info("iterative coordination stopped by marker", "round", round)
			return
		}

		currRound := concatOutputs(ex.collectOutputs(state))
		if round > 1 && r.convergence.Converged(prevRound, currRound) {
			r.logger.Info("iterative coordination converged", "round", round)
			return
		}
		prevRound = currRound
	}
}

// runUnit executes one team or peer and returns its stored output.
func (ex *execution) runUnit(ctx context.Context, state *core.WorkflowState, u unit, previous map[string]string) string {
	if u.team != nil {
		return ex.runTeam(ctx, state, u.team, previous)
	}
	out, _ := ex.invokeHybridAgent(ctx, state, *u.peer, previous)
	return out
}

// runTeam invokes every worker with the task, then has the team supervisor
// synthesize their outputs into the team's contribution.
func (ex *execution) runTeam(ctx context.Context, state *core.WorkflowState, team *core.TeamConfig, previous map[string]string) string {
	r := ex.runner
	workerOutputs := make(map[string]string, len(team.Workers))
	for _, w := range team.Workers {
		cfg := r.agents[w.Name]
		out, err := ex.invokeHybridAgent(ctx, state, cfg, previous)
		if err == nil {
			workerOutputs[w.Name] = out
		}
		state.Graph.AddEdge(team.Supervisor.Name, w.Name)
	}

	sup := r.agents[team.Supervisor.Name]
	var b strings.Builder
	b.WriteString("Task: " + state.Input + "\n\nYour team's outputs:\n")
	for _, w := range team.Workers {
		if out, ok := workerOutputs[w.Name]; ok {
			b.WriteString(fmt.Sprintf("\n%s:\n%s\n", w.Name, out))
		}
	}
	b.WriteString("\nCombine your team's outputs into one contribution.")
	out, _ := ex.invokeHybridAgentPrompt(ctx, state, sup, b.String())
	return out
}

// invokeHybridAgent builds the standard hybrid prompt (task plus previous
// outputs) and invokes cfg.
func (ex *execution) invokeHybridAgent(ctx context.Context, state *core.WorkflowState, cfg core.AgentConfig, previous map[string]string) (string, error) {
	var b strings.Builder
	b.WriteString("Task: " + state.Input)
	if len(previous) > 0 {
		b.WriteString("\n\nOutputs from previous agents:\n" + concatOutputs(previous))
	}
	if cfg.PromptTemplate != "" {
		return ex.invokeHybridAgentPrompt(ctx, state, cfg, renderHybridTemplate(cfg.PromptTemplate, state.Input, previous, state.Iteration))
	}
	return ex.invokeHybridAgentPrompt(ctx, state, cfg, b.String())
}

// invokeHybridAgentPrompt performs the wrapped invocation and records output,
// usage and errors on the state. Errors are absorbed.
func (ex *execution) invokeHybridAgentPrompt(ctx context.Context, state *core.WorkflowState, cfg core.AgentConfig, userPrompt string) (string, error) {
	r := ex.runner
	agent := state.Agent(cfg.Name)

	resp, err := ex.generate(ctx, core.GenerateRequest{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Prompt:        userPrompt,
		SystemMessage: cfg.SystemMessage,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
	})
	if err != nil {
		inv := &core.InvocationError{Agent: cfg.Name, Err: err}
		r.logger.Error("agent invocation failed", "agent", cfg.Name, "error", err)
		agent.Err = inv.Error()
		state.AppendHistory(core.HistoryEntry{Agent: cfg.Name, Action: core.ActionError, Err: inv.Error()})
		return "", err
	}
	agent.Messages = append(agent.Messages,
		core.Message{Role: "user", Content: userPrompt},
		core.Message{Role: "assistant", Content: resp.Content},
	)
	agent.Output = resp.Content
	agent.Err = ""
	ex.recordUsage(core.AgentUsage{
		Agent:        cfg.Name,
		Role:         cfg.Role,
		Model:        cfg.Model,
		OutputLength: len(resp.Content),
		Iteration:    state.Iteration,
	})
	return resp.Content, nil
}

// hybridSynthesis has the final agent combine every unit output into the
// run's answer. Without a designated final agent, the outputs are joined
// directly.
func (ex *execution) hybridSynthesis(ctx context.Context, state *core.WorkflowState) error {
	r := ex.runner
	outputs := ex.collectOutputs(state)

	if r.cfg.FinalAgent == "" {
		if len(outputs) == 0 {
			state.FinalOutput = noOutputMessage
			return nil
		}
		state.FinalOutput = concatOutputs(outputs)
		return nil
	}

	cfg := r.agents[r.cfg.FinalAgent]
	var b strings.Builder
	b.WriteString("Original task: " + state.Input + "\n\nContributions:\n" + concatOutputs(outputs))
	b.WriteString("\n\nSynthesize these contributions into a single coherent answer.")
	out, err := ex.invokeHybridAgentPrompt(ctx, state, cfg, b.String())
	if err != nil {
		return err
	}
	state.FinalOutput = stripTags(out)
	return nil
}

// collectOutputs snapshots the successful agent outputs, sorted by name.
func (ex *execution) collectOutputs(state *core.WorkflowState) map[string]string {
	out := make(map[string]string)
	for name, a := range state.Agents {
		if a.Output != "" && a.Err == "" {
			out[name] = a.Output
		}
	}
	return out
}

func (ex *execution) unitAgents(u unit) []string {
	if u.team != nil {
		names := []string{u.team.Supervisor.Name}
		for _, w := range u.team.Workers {
			names = append(names, w.Name)
		}
		return names
	}
	return []string{u.peer.Name}
}

func (ex *execution) resolveHybridAgent(requested string) (string, bool) {
	for _, name := range ex.runner.order {
		if strings.EqualFold(name, requested) {
			return name, true
		}
	}
	return "", false
}

func concatOutputs(outputs map[string]string) string {
	if len(outputs) == 0 {
		return ""
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

func renderHybridTemplate(template, input string, previous map[string]string, iteration int) string {
	out := strings.ReplaceAll(template, "{input}", input)
	out = strings.ReplaceAll(out, "{previous_outputs}", concatOutputs(previous))
	out = strings.ReplaceAll(out, "{iteration}", fmt.Sprintf("%d", iteration))
	return out
}
