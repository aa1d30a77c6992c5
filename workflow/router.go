package workflow

import (
	"github.com/agentloom/agentloom/core"
)

// routerNode resolves the latest decision into the next node. Each call is
// one routing pass: the iteration counter increments first and the cap forces
// the final node when exceeded, regardless of what the decision asked for.
func (ex *execution) routerNode(state *core.WorkflowState) *core.WorkflowState {
	r := ex.runner
	next := state.Clone()
	next.Iteration++

	if next.Iteration > r.cfg.MaxIterations {
		r.logger.Warn("iteration cap reached, forcing final", "iteration", next.Iteration)
		next.AppendHistory(core.HistoryEntry{
			Agent:  core.RouterNode,
			Action: core.ActionMaxIterations,
			Target: core.FinalNode,
		})
		next.CurrentAgent = core.FinalNode
		return next
	}

	// An errored agent leaves no decision to route on; the run concludes
	// with whatever the other agents produced.
	if next.Agent(next.CurrentAgent).Err != "" {
		next.Agent(next.CurrentAgent).NextAgent = core.FinalNode
		next.AppendHistory(core.HistoryEntry{
			Agent:  next.CurrentAgent,
			Action: core.ActionRoute,
			Target: core.FinalNode,
		})
		next.CurrentAgent = core.FinalNode
		return next
	}

	if r.cfg.Topology == core.TopologySwarm {
		return ex.routeSwarm(next)
	}
	return ex.routeDecision(next)
}

// routeSwarm advances the structural swarm schedule. Sequential swarms walk
// the declaration order; hub-and-spoke visits the hub once, then every spoke,
// then the final node where the hub synthesizes.
func (ex *execution) routeSwarm(state *core.WorkflowState) *core.WorkflowState {
	r := ex.runner
	current := state.CurrentAgent

	var target string
	if r.cfg.Interaction == core.InteractionHubAndSpoke {
		target = core.FinalNode
		if spoke := ex.nextSpoke(current); spoke != "" {
			target = spoke
			state.Graph.AddEdge(r.cfg.HubAgent, spoke)
		}
	} else {
		target = core.FinalNode
		// A STOP marker lets any agent end the sequence early.
		if !stopMarkerRe.MatchString(state.Agent(current).Output) {
			for i, a := range r.cfg.Agents {
				if a.Name == current && i+1 < len(r.cfg.Agents) {
					target = r.cfg.Agents[i+1].Name
					state.Graph.AddEdge(current, target)
					break
				}
			}
		}
	}

	state.Agent(current).NextAgent = target
	state.AppendHistory(core.HistoryEntry{
		Agent:  current,
		Action: core.ActionRoute,
		Target: target,
	})
	state.CurrentAgent = target
	return state
}

// nextSpoke returns the first spoke after current in declaration order, or
// the first spoke when current is the hub. Empty when every spoke has run.
func (ex *execution) nextSpoke(current string) string {
	r := ex.runner
	spokes := make([]string, 0, len(r.cfg.Agents))
	for _, a := range r.cfg.Agents {
		if a.Name != r.cfg.HubAgent {
			spokes = append(spokes, a.Name)
		}
	}
	if current == r.cfg.HubAgent {
		if len(spokes) > 0 {
			return spokes[0]
		}
		return ""
	}
	for i, s := range spokes {
		if s == current && i+1 < len(spokes) {
			return spokes[i+1]
		}
	}
	return ""
}

// routeDecision handles decision-driven topologies (supervisor, rag).
func (ex *execution) routeDecision(state *core.WorkflowState) *core.WorkflowState {
	r := ex.runner
	current := state.CurrentAgent
	cfg := r.agents[current]
	d := state.Decisions[len(state.Decisions)-1]

	// Capability gates demote decisions the agent is not allowed to make.
	if d.Kind == core.DecisionDelegate && !cfg.CanDelegate {
		r.logger.Warn("agent delegated without the capability", "agent", current)
		d.Kind = core.DecisionRespond
	}
	if d.Kind == core.DecisionFinal && !cfg.CanFinalize && cfg.Role != core.RoleSupervisor {
		d.Kind = core.DecisionRespond
	}

	var target string
	switch d.Kind {
	case core.DecisionUseTool:
		// Tool results are in the conversation; the same agent goes again.
		target = current
	case core.DecisionFinal:
		target = core.FinalNode
		state.FinalOutput = finalContent(d)
	case core.DecisionDelegate:
		target = ex.resolveDelegation(state, current, d.Target)
	default: // respond
		target = ex.respondTarget(current, cfg)
	}

	state.Agent(current).NextAgent = target
	state.AppendHistory(core.HistoryEntry{
		Agent:     current,
		Action:    core.ActionRoute,
		Target:    target,
		Reasoning: d.Reasoning,
	})
	state.CurrentAgent = target
	return state
}

// resolveDelegation applies the allow-list and records the handoff edge.
// Returning control to the coordinating supervisor is structural, not a
// handoff, so it bypasses the allow-list and leaves no edge.
func (ex *execution) resolveDelegation(state *core.WorkflowState, current, target string) string {
	r := ex.runner
	if r.isCoordinator(target) && r.agents[current].Role != core.RoleSupervisor {
		return target
	}

	if r.allowed != nil && !r.allowed.Has(current, target) {
		substitute, ok := ex.substitute(state, current)
		if !ok {
			r.logger.Warn("delegation blocked with no allowed substitute, forcing final",
				"agent", current, "requested", target)
			return core.FinalNode
		}
		state.AppendHistory(core.HistoryEntry{
			Agent:     current,
			Action:    core.ActionSubstituted,
			Target:    substitute,
			Reasoning: "requested target " + target + " is not an allowed edge",
		})
		target = substitute
	}

	state.Graph.AddEdge(current, target)
	return target
}

// substitute picks a replacement target from the allow-list per the
// configured policy.
func (ex *execution) substitute(state *core.WorkflowState, current string) (string, bool) {
	r := ex.runner
	candidates := make([]string, 0, 4)
	for _, t := range r.allowed.Targets(current) {
		if t != core.FinalNode {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	switch r.cfg.Substitution {
	case core.SubstituteRoundRobin:
		if ex.rrCursor == nil {
			ex.rrCursor = make(map[string]int)
		}
		i := ex.rrCursor[current] % len(candidates)
		ex.rrCursor[current]++
		return candidates[i], true
	case core.SubstituteLeastUsed:
		best := candidates[0]
		bestCount := state.Graph.OutDegree(current, best)
		for _, c := range candidates[1:] {
			if n := state.Graph.OutDegree(current, c); n < bestCount {
				best, bestCount = c, n
			}
		}
		return best, true
	default: // first
		return candidates[0], true
	}
}

// respondTarget routes a plain response: workers report back to their
// supervisor, everyone else is done.
func (ex *execution) respondTarget(current string, cfg core.AgentConfig) string {
	r := ex.runner
	if r.cfg.Topology == core.TopologySupervisor && cfg.Role != core.RoleSupervisor && r.cfg.Supervisor != nil {
		return r.cfg.Supervisor.Name
	}
	return core.FinalNode
}

func (r *Runner) isCoordinator(name string) bool {
	if r.cfg.Supervisor != nil && r.cfg.Supervisor.Name == name {
		return true
	}
	return r.cfg.HubAgent != "" && r.cfg.HubAgent == name
}

// finalContent strips decision markers from the payload carried to the final
// node.
func finalContent(d core.Decision) string {
	return stripTags(d.Content)
}
