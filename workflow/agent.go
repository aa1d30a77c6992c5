package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/decision"
	"github.com/agentloom/agentloom/prompt"
	"github.com/agentloom/agentloom/toolkit"
)

// agentNode invokes the current agent, parses its reply into a decision, and
// returns the transformed state. Invocation failures are absorbed: the agent
// records its error and the router concludes the run at the final node.
func (ex *execution) agentNode(ctx context.Context, state *core.WorkflowState) *core.WorkflowState {
	r := ex.runner
	name := state.CurrentAgent
	cfg := r.agents[name]

	next := state.Clone()
	agent := next.Agent(name)

	userPrompt := ex.assemblePrompt(ctx, cfg, next)
	req := core.GenerateRequest{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		Prompt:        userPrompt,
		SystemMessage: cfg.SystemMessage,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Tools:         ex.toolSpecs(cfg),
	}

	resp, err := ex.generate(ctx, req)
	if err != nil {
		inv := &core.InvocationError{Agent: name, Err: err}
		r.logger.Error("agent invocation failed", "agent", name, "error", err)
		agent.Err = inv.Error()
		agent.Output = inv.Error()
		next.AppendHistory(core.HistoryEntry{
			Agent:  name,
			Action: core.ActionError,
			Err:    inv.Error(),
		})
		return next
	}

	agent.Messages = append(agent.Messages,
		core.Message{Role: "user", Content: userPrompt},
		core.Message{Role: "assistant", Content: resp.Content},
	)
	agent.Output = resp.Content
	agent.Err = ""
	ex.recordUsage(core.AgentUsage{
		Agent:        name,
		Role:         cfg.Role,
		Model:        cfg.Model,
		OutputLength: len(resp.Content),
		Iteration:    next.Iteration,
	})

	d := r.parser.Parse(resp.Content, name, cfg.Role, ex.parseContext(next))
	if d.Kind == core.DecisionUseTool {
		d = ex.runTool(ctx, next, cfg, d)
	}
	next.Decisions = append(next.Decisions, d)
	r.logger.Debug("agent decided", "agent", name, "kind", string(d.Kind), "target", d.Target)
	return next
}

// runTool executes the requested tool and folds the envelope back into the
// agent's conversation so the follow-up invocation can use it. The decision
// stays use_tool; the router keeps control with the same agent.
func (ex *execution) runTool(ctx context.Context, state *core.WorkflowState, cfg core.AgentConfig, d core.Decision) core.Decision {
	r := ex.runner
	agent := state.Agent(cfg.Name)

	if !cfg.CanUseTools {
		r.logger.Warn("agent requested a tool without the capability", "agent", cfg.Name, "tool", d.ToolName)
		d.Kind = core.DecisionRespond
		d.Reasoning = "tool use not permitted for this agent"
		return d
	}

	res := r.tools.Execute(ctx, d.ToolName, d.ToolParams)
	agent.ToolsUsed = append(agent.ToolsUsed, d.ToolName)
	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
	}
	agent.Messages = append(agent.Messages, core.Message{
		Role:    "tool",
		Content: fmt.Sprintf("[%s] %s", d.ToolName, payload),
	})
	if !res.Success {
		r.logger.Warn("tool failed", "agent", cfg.Name, "tool", d.ToolName, "error", res.Error)
	}
	return d
}

// generate is the wrapped provider call: cache, throttle, then retry.
func (ex *execution) generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
	r := ex.runner

	var key string
	if r.cache != nil {
		key = toolkit.CacheKey("generate", req)
		if v, ok := r.cache.Get(key); ok {
			return v.(*core.GenerateResponse), nil
		}
	}

	if err := r.throttles.Acquire(ctx, req.Provider); err != nil {
		return nil, err
	}

	resp, err := toolkit.Retry(ctx, func(ctx context.Context) (*core.GenerateResponse, error) {
		return r.invoker.Generate(ctx, req)
	}, r.retryOpts...)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(key, resp)
	}
	return resp, nil
}

// assemblePrompt renders the agent's template with the run's current values.
// Agents without a template get a topology-appropriate default.
func (ex *execution) assemblePrompt(ctx context.Context, cfg core.AgentConfig, state *core.WorkflowState) string {
	r := ex.runner
	template := cfg.PromptTemplate
	if template == "" {
		template = defaultTemplate(r.cfg, cfg)
	}

	data := prompt.Data{
		Input:             state.Input,
		Iteration:         state.Iteration,
		AvailableAgents:   ex.peersOf(cfg.Name),
		AvailableTools:    ex.toolInfos(cfg),
		PreviousDecisions: state.Decisions,
		MakeDecision:      prompt.DecisionInstructions(cfg),
	}

	switch r.cfg.Topology {
	case core.TopologySupervisor:
		if cfg.Role == core.RoleSupervisor {
			data.WorkerOutputs = ex.outputsOf(state, workerNames(r.cfg))
		} else if sup := r.cfg.Supervisor; sup != nil {
			data.Context = state.Agents[sup.Name].Output
		}
	case core.TopologySwarm:
		if r.cfg.Interaction == core.InteractionHubAndSpoke {
			if cfg.Role != core.RoleHub {
				data.HubOutput = state.Agents[r.cfg.HubAgent].Output
			}
		} else {
			data.PreviousOutputs = ex.outputsOf(state, ex.agentsBefore(cfg.Name))
		}
	case core.TopologyRAG:
		data.Retrieved = ex.retrieve(ctx, state.Input)
	}
	return withToolResults(prompt.Render(template, data), state.Agents[cfg.Name])
}

// withToolResults appends the agent's executed tool envelopes to the prompt
// so the follow-up invocation sees what its tool calls returned.
func withToolResults(rendered string, agent *core.AgentState) string {
	if agent == nil {
		return rendered
	}
	var results []string
	for _, m := range agent.Messages {
		if m.Role == "tool" {
			results = append(results, m.Content)
		}
	}
	if len(results) == 0 {
		return rendered
	}
	return rendered + "\n\nTool results:\n" + strings.Join(results, "\n")
}

// retrieve pre-fetches context for the rag agent. A missing or failing
// retriever degrades to the sentinel, never to a run failure.
func (ex *execution) retrieve(ctx context.Context, query string) string {
	r := ex.runner
	if r.retriever == nil {
		return ""
	}
	docs, err := r.retriever.SimilaritySearch(ctx, query, 4, "", 0)
	if err != nil {
		r.logger.Warn("retrieval failed", "error", err)
		return ""
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (ex *execution) parseContext(state *core.WorkflowState) decision.Context {
	r := ex.runner
	roles := make(map[string]core.Role, len(r.agents))
	for name, a := range r.agents {
		roles[name] = a.Role
	}
	var tools []string
	if cfg, ok := r.agents[state.CurrentAgent]; ok {
		for _, def := range r.tools.ForAgent(cfg.Tools) {
			tools = append(tools, def.Name)
		}
	}
	return decision.Context{
		Topology:        r.cfg.Topology,
		Interaction:     r.cfg.Interaction,
		AvailableAgents: append([]string(nil), r.order...),
		AgentRoles:      roles,
		Workers:         workerNames(r.cfg),
		HubAgent:        r.cfg.HubAgent,
		Iteration:       state.Iteration,
		ToolsAvailable:  tools,
	}
}

func (ex *execution) peersOf(name string) []string {
	var out []string
	for _, n := range ex.runner.order {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func (ex *execution) agentsBefore(name string) []string {
	var out []string
	for _, a := range ex.runner.cfg.Agents {
		if a.Name == name {
			break
		}
		out = append(out, a.Name)
	}
	return out
}

func (ex *execution) outputsOf(state *core.WorkflowState, names []string) map[string]string {
	out := make(map[string]string)
	for _, name := range names {
		if a, ok := state.Agents[name]; ok && a.Output != "" && a.Err == "" {
			out[name] = a.Output
		}
	}
	return out
}

func (ex *execution) toolInfos(cfg core.AgentConfig) []prompt.ToolInfo {
	if !cfg.CanUseTools {
		return nil
	}
	defs := ex.runner.tools.ForAgent(cfg.Tools)
	infos := make([]prompt.ToolInfo, 0, len(defs))
	for _, def := range defs {
		params := make(map[string]any, len(def.Parameters))
		for _, p := range def.Parameters {
			params[p.Name] = p.Type
		}
		infos = append(infos, prompt.ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return infos
}

func (ex *execution) toolSpecs(cfg core.AgentConfig) []core.ToolSpec {
	if !cfg.CanUseTools {
		return nil
	}
	defs := ex.runner.tools.ForAgent(cfg.Tools)
	specs := make([]core.ToolSpec, 0, len(defs))
	for _, def := range defs {
		params := make(map[string]any, len(def.Parameters))
		for _, p := range def.Parameters {
			params[p.Name] = map[string]any{"type": p.Type, "description": p.Description}
		}
		specs = append(specs, core.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return specs
}

func workerNames(cfg core.WorkflowConfig) []string {
	names := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		names = append(names, w.Name)
	}
	return names
}
