// Package workflow executes multi-agent runs over a declared topology. A run
// is a state machine: agent nodes invoke models and parse decisions, the
// router resolves each decision to the next node under the iteration cap and
// allow-list, and the final node derives the run's answer. Every transition
// operates on a cloned state, so checkpoints and audit history never observe
// partial mutation.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/decision"
	"github.com/agentloom/agentloom/internal/util"
	"github.com/agentloom/agentloom/logging"
	"github.com/agentloom/agentloom/prompt"
	"github.com/agentloom/agentloom/tool"
	"github.com/agentloom/agentloom/toolkit"
)

// Options configure a Runner.
type Options struct {
	Invoker     core.Invoker
	Tools       *tool.Registry
	Parser      *decision.Parser
	Cache       *toolkit.Cache
	Throttles   *toolkit.ThrottleSet
	Checkpoints toolkit.CheckpointStore
	Retriever   core.Retriever
	Logger      logging.Logger

	// FanOutLimit bounds concurrent agent invocations in parallel hybrid
	// coordination. Zero means unbounded.
	FanOutLimit int

	// Convergence overrides the iterative-coordination early-exit check.
	Convergence *Convergence

	// RetryOptions tune the per-invocation retry wrapper.
	RetryOptions []func(o *toolkit.RetryOptions)
}

// Runner executes workflows for one validated configuration.
type Runner struct {
	cfg     core.WorkflowConfig
	agents  map[string]core.AgentConfig // enhanced, keyed by name
	order   []string                    // declaration order
	allowed *core.ExecutionGraph        // nil when no allow-list is configured

	invoker     core.Invoker
	tools       *tool.Registry
	parser      *decision.Parser
	cache       *toolkit.Cache
	throttles   *toolkit.ThrottleSet
	checkpoints toolkit.CheckpointStore
	retriever   core.Retriever
	logger      logging.Logger
	fanoutLimit int
	convergence Convergence
	retryOpts   []func(o *toolkit.RetryOptions)
}

// New validates cfg and builds a Runner. Configuration problems are reported
// up front as *core.ConfigError; nothing is invoked yet.
func New(cfg core.WorkflowConfig, optFns ...func(o *Options)) (*Runner, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Invoker == nil {
		return nil, core.Configf("an invoker is required")
	}
	if opts.Parser == nil {
		opts.Parser = decision.NewParser(func(o *decision.Options) { o.Logger = opts.Logger })
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
	}
	if opts.Throttles == nil {
		opts.Throttles = toolkit.NewThrottleSet(nil)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = core.DefaultMaxIterations
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = core.DefaultMaxRounds
	}
	if cfg.Substitution == "" {
		cfg.Substitution = core.SubstituteFirst
	}

	r := &Runner{
		cfg:         cfg,
		agents:      make(map[string]core.AgentConfig),
		invoker:     opts.Invoker,
		tools:       opts.Tools,
		parser:      opts.Parser,
		cache:       opts.Cache,
		throttles:   opts.Throttles,
		checkpoints: opts.Checkpoints,
		retriever:   opts.Retriever,
		logger:      opts.Logger,
		fanoutLimit: opts.FanOutLimit,
		convergence: DefaultConvergence(),
		retryOpts:   opts.RetryOptions,
	}
	if opts.Convergence != nil {
		r.convergence = *opts.Convergence
	}

	for _, a := range cfg.AllAgents() {
		if a.Name == "" {
			return nil, core.Configf("every agent needs a name")
		}
		if a.Name == core.FinalNode || a.Name == core.RouterNode {
			return nil, core.Configf("agent name %q is reserved", a.Name)
		}
		if _, dup := r.agents[a.Name]; dup {
			return nil, core.Configf("duplicate agent name %q", a.Name)
		}
		r.agents[a.Name] = prepareAgent(a)
		r.order = append(r.order, a.Name)
	}
	if len(r.agents) == 0 {
		return nil, core.Configf("topology %q declares no agents", cfg.Topology)
	}

	if err := r.validateTopology(); err != nil {
		return nil, err
	}
	if err := r.validateAllowList(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) validateTopology() error {
	switch r.cfg.Topology {
	case core.TopologySupervisor:
		if r.cfg.Supervisor == nil {
			return core.Configf("supervisor topology needs a supervisor")
		}
		if len(r.cfg.Workers) == 0 {
			return core.Configf("supervisor topology needs at least one worker")
		}
	case core.TopologySwarm:
		if len(r.cfg.Agents) == 0 {
			return core.Configf("swarm topology needs agents")
		}
		switch r.cfg.Interaction {
		case core.InteractionSequential, "":
		case core.InteractionHubAndSpoke:
			if r.cfg.HubAgent == "" {
				return core.Configf("hub_and_spoke interaction needs hub_agent")
			}
			if _, ok := r.agents[r.cfg.HubAgent]; !ok {
				return core.Configf("hub_agent %q is not a declared agent", r.cfg.HubAgent)
			}
		default:
			return core.Configf("unknown interaction %q", r.cfg.Interaction)
		}
	case core.TopologyRAG:
		if len(r.cfg.Agents) != 1 {
			return core.Configf("rag topology needs exactly one agent")
		}
	case core.TopologyHybrid:
		if len(r.cfg.Teams) == 0 && len(r.cfg.Peers) == 0 {
			return core.Configf("hybrid topology needs teams or peers")
		}
		switch r.cfg.Coordination {
		case core.CoordinationSequential, core.CoordinationParallel, core.CoordinationIterative, "":
		case core.CoordinationDynamic:
			if r.cfg.Coordinator == "" {
				return core.Configf("dynamic coordination needs a coordinator")
			}
			if _, ok := r.agents[r.cfg.Coordinator]; !ok {
				return core.Configf("coordinator %q is not a declared agent", r.cfg.Coordinator)
			}
		default:
			return core.Configf("unknown coordination %q", r.cfg.Coordination)
		}
		if r.cfg.FinalAgent != "" {
			if _, ok := r.agents[r.cfg.FinalAgent]; !ok {
				return core.Configf("final_agent %q is not a declared agent", r.cfg.FinalAgent)
			}
		}
	default:
		return core.Configf("unknown topology %q", r.cfg.Topology)
	}
	return nil
}

// validateAllowList checks that every edge references declared agents (or the
// final node). Cycles are allowed, the iteration cap bounds them, but they
// are surfaced in the log since an allow-list with no route to completion
// always exhausts the cap.
func (r *Runner) validateAllowList() error {
	if len(r.cfg.AllowedEdges) == 0 {
		return nil
	}
	for from, targets := range r.cfg.AllowedEdges {
		if _, ok := r.agents[from]; !ok {
			return core.Configf("allowed edge source %q is not a declared agent", from)
		}
		for _, to := range targets {
			if to == core.FinalNode {
				continue
			}
			if _, ok := r.agents[to]; !ok {
				return core.Configf("allowed edge target %q is not a declared agent", to)
			}
		}
	}
	r.allowed = core.NewExecutionGraphFromEdges(r.cfg.AllowedEdges)
	if r.allowed.HasCycle() {
		r.logger.Warn("allow-list contains a cycle; the iteration cap bounds traversal")
	}
	return nil
}

// prepareAgent applies defaults and capability-gated prompt enhancement.
func prepareAgent(a core.AgentConfig) core.AgentConfig {
	if a.Role == "" {
		a.Role = core.RolePeer
	}
	if a.Provider == "" {
		a.Provider = "openai"
	}
	return decisionReady(a)
}

func decisionReady(a core.AgentConfig) core.AgentConfig {
	switch a.Role {
	case core.RoleSupervisor, core.RoleHub:
		if !a.CanDelegate && !a.CanFinalize {
			a.CanDelegate = true
			a.CanFinalize = true
		}
	case core.RoleRAG:
		if !a.CanFinalize {
			a.CanFinalize = true
		}
	}
	return prompt.Enhance(a)
}

// Execute runs one workflow to completion. executionID may be empty; a fresh
// id is generated. Runtime failures never return an error: they are reported
// through the Result. The returned Result is never nil.
func (r *Runner) Execute(ctx context.Context, input, executionID string) *core.Result {
	if executionID == "" {
		executionID = util.NewID()
	}
	start := time.Now()
	r.logger.Info("workflow starting", "topology", string(r.cfg.Topology), "execution_id", executionID)

	ex := &execution{runner: r, id: executionID}
	var res *core.Result
	if r.cfg.Topology == core.TopologyHybrid {
		res = ex.runHybrid(ctx, input)
	} else {
		res = ex.runGraph(ctx, r.initialState(input))
	}
	res.ExecutionTime = time.Since(start).Seconds()
	r.logger.Info("workflow finished", "execution_id", executionID, "success", res.Success, "seconds", res.ExecutionTime)
	return res
}

// Resume picks up a run from its latest checkpoint and drives it to
// completion. Only graph topologies checkpoint mid-run.
func (r *Runner) Resume(ctx context.Context, executionID string) (*core.Result, error) {
	if r.checkpoints == nil {
		return nil, fmt.Errorf("no checkpoint store configured")
	}
	cp, err := r.checkpoints.Latest(executionID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	r.logger.Info("workflow resuming", "execution_id", executionID, "iteration", cp.State.Iteration)
	ex := &execution{runner: r, id: executionID}
	res := ex.runGraph(ctx, cp.State.Clone())
	res.ExecutionTime = time.Since(start).Seconds()
	return res, nil
}

// initialState seeds the state machine for graph topologies.
func (r *Runner) initialState(input string) *core.WorkflowState {
	state := core.NewWorkflowState(input)
	for _, name := range r.order {
		state.Agent(name).Role = r.agents[name].Role
	}
	switch r.cfg.Topology {
	case core.TopologySupervisor:
		state.CurrentAgent = r.cfg.Supervisor.Name
	case core.TopologySwarm:
		if r.cfg.Interaction == core.InteractionHubAndSpoke {
			state.CurrentAgent = r.cfg.HubAgent
		} else {
			state.CurrentAgent = r.cfg.Agents[0].Name
		}
	case core.TopologyRAG:
		state.CurrentAgent = r.cfg.Agents[0].Name
	}
	return state
}

// execution is the scope of one run: it carries the accumulating usage record
// so a Runner stays reusable and safe for concurrent Execute calls.
type execution struct {
	runner *Runner
	id     string

	mu    sync.Mutex
	usage []core.AgentUsage

	// round-robin cursors for the substitution policy, keyed by source agent
	rrCursor map[string]int
}

// recordUsage is safe under parallel coordination, where unit invocations
// run concurrently.
func (ex *execution) recordUsage(u core.AgentUsage) {
	ex.mu.Lock()
	ex.usage = append(ex.usage, u)
	ex.mu.Unlock()
}

// runGraph drives the agent/router loop until the final node, then derives
// the result.
func (ex *execution) runGraph(ctx context.Context, state *core.WorkflowState) *core.Result {
	r := ex.runner
	for state.CurrentAgent != core.FinalNode {
		if err := ctx.Err(); err != nil {
			state = state.Clone()
			state.AppendHistory(core.HistoryEntry{
				Agent:  core.RouterNode,
				Action: core.ActionCanceled,
				Err:    err.Error(),
			})
			res := ex.buildResult(state)
			res.Success = false
			res.Error = err.Error()
			return res
		}

		state = ex.agentNode(ctx, state)
		state = ex.routerNode(state)

		if r.checkpoints != nil {
			if err := r.checkpoints.Save(ex.id, state); err != nil {
				r.logger.Warn("checkpoint save failed", "execution_id", ex.id, "error", err)
			}
		}
	}
	return ex.finalNode(ctx, state)
}

// buildResult extracts the caller-facing result from a finished (or aborted)
// state.
func (ex *execution) buildResult(state *core.WorkflowState) *core.Result {
	res := &core.Result{
		Success:        true,
		FinalOutput:    state.FinalOutput,
		Outputs:        make(map[string]string),
		ExecutionGraph: state.Graph.Edges(),
	}
	for _, name := range state.AgentNames() {
		a := state.Agents[name]
		if a.Output != "" {
			res.Outputs[name] = a.Output
		}
	}
	for _, d := range state.Decisions {
		res.Decisions = append(res.Decisions, d.Clone())
	}
	ex.mu.Lock()
	res.AgentUsage = append([]core.AgentUsage(nil), ex.usage...)
	ex.mu.Unlock()
	return res
}
