package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/tool"
	"github.com/agentloom/agentloom/toolkit"
)

func supervisorConfig() core.WorkflowConfig {
	return core.WorkflowConfig{
		Topology: core.TopologySupervisor,
		Supervisor: &core.AgentConfig{
			Name: "S", Role: core.RoleSupervisor, Provider: "openai", Model: "sup-model",
			CanDelegate: true, CanFinalize: true,
		},
		Workers: []core.AgentConfig{
			{Name: "W1", Role: core.RoleWorker, Provider: "openai", Model: "w1-model"},
			{Name: "W2", Role: core.RoleWorker, Provider: "openai", Model: "w2-model"},
		},
	}
}

func newTestRunner(t *testing.T, cfg core.WorkflowConfig, mock *core.MockInvoker, extra ...func(o *Options)) *Runner {
	t.Helper()
	optFns := append([]func(o *Options){func(o *Options) { o.Invoker = mock }}, extra...)
	r, err := New(cfg, optFns...)
	require.NoError(t, err)
	return r
}

func TestSupervisorDelegationRoundTrip(t *testing.T) {
	mock := core.NewMockInvoker()
	mock.Queue("sup-model",
		"[ACTION: delegate to W1] [CONTENT: research the topic]",
		"[ACTION: final] The topic is well understood.",
	)
	mock.Queue("w1-model", "Here is what I found about the topic.")

	r := newTestRunner(t, supervisorConfig(), mock)
	res := r.Execute(context.Background(), "explain the topic", "")

	require.True(t, res.Success)
	assert.Equal(t, "The topic is well understood.", res.FinalOutput)
	assert.Equal(t, map[string][]string{"S": {"W1"}}, res.ExecutionGraph,
		"only the explicit delegation is a handoff; the worker's return is structural")
	assert.Equal(t, 3, mock.Calls())
	require.NotEmpty(t, res.AgentUsage)
	assert.Equal(t, "S", res.AgentUsage[0].Agent)
}

func TestIterationCapForcesFinal(t *testing.T) {
	cfg := supervisorConfig()
	cfg.MaxIterations = 3
	mock := core.NewMockInvoker()
	// The supervisor keeps delegating and never concludes.
	mock.SetFallback(func(req core.GenerateRequest) string {
		if req.Model == "sup-model" {
			return "[ACTION: delegate to W1] keep going"
		}
		return "partial work"
	})

	r := newTestRunner(t, cfg, mock)
	res := r.Execute(context.Background(), "no end in sight", "")

	require.True(t, res.Success)
	assert.LessOrEqual(t, mock.Calls(), cfg.MaxIterations+1,
		"at most one agent pass per routing pass plus the opening pass")
	assert.NotEmpty(t, res.FinalOutput)
}

func TestInvocationErrorRoutesToFinal(t *testing.T) {
	mock := core.NewMockInvoker()
	mock.Queue("sup-model", "[ACTION: delegate to W1] go")
	failing := &failingInvoker{inner: mock, failModel: "w1-model"}

	r, err := New(supervisorConfig(), func(o *Options) {
		o.Invoker = failing
		o.RetryOptions = retryNone()
	})
	require.NoError(t, err)
	res := r.Execute(context.Background(), "task", "")

	require.True(t, res.Success, "a single agent failure never fails the run")
	assert.Contains(t, res.Outputs["W1"], "invocation failed")
	assert.Equal(t, 1, mock.Calls(), "the failed worker routes to final, not back to the supervisor")
	assert.Equal(t, "S: go", res.FinalOutput, "the run concludes with the remaining agents' outputs")
}

func TestSwarmSequentialErrorEndsRun(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology: core.TopologySwarm,
		Agents: []core.AgentConfig{
			{Name: "first", Provider: "openai", Model: "m1"},
			{Name: "second", Provider: "openai", Model: "m2"},
			{Name: "third", Provider: "openai", Model: "m3"},
		},
	}
	mock := core.NewMockInvoker()
	mock.Queue("m1", "opening thoughts")
	failing := &failingInvoker{inner: mock, failModel: "m2"}

	r, err := New(cfg, func(o *Options) {
		o.Invoker = failing
		o.RetryOptions = retryNone()
	})
	require.NoError(t, err)
	res := r.Execute(context.Background(), "discuss", "")

	require.True(t, res.Success)
	assert.Contains(t, res.Outputs["second"], "invocation failed")
	assert.NotContains(t, res.Outputs, "third", "the failure concludes the run before later agents")
	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, "opening thoughts", res.FinalOutput)
}

func retryNone() []func(o *toolkit.RetryOptions) {
	return []func(o *toolkit.RetryOptions){func(o *toolkit.RetryOptions) {
		o.MaxRetries = 0
		o.Sleep = func(context.Context, time.Duration) error { return nil }
	}}
}

type failingInvoker struct {
	inner     *core.MockInvoker
	failModel string
}

func (f *failingInvoker) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
	if req.Model == f.failModel {
		return nil, errors.New("provider unavailable")
	}
	return f.inner.Generate(ctx, req)
}

func TestHubAndSpokeIterations(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology:    core.TopologySwarm,
		Interaction: core.InteractionHubAndSpoke,
		HubAgent:    "hub",
		Agents: []core.AgentConfig{
			{Name: "hub", Role: core.RoleHub, Provider: "openai", Model: "hub-model"},
			{Name: "sa", Role: core.RoleSpoke, Provider: "openai", Model: "sa-model"},
			{Name: "sb", Role: core.RoleSpoke, Provider: "openai", Model: "sb-model"},
			{Name: "sc", Role: core.RoleSpoke, Provider: "openai", Model: "sc-model"},
		},
	}
	mock := core.NewMockInvoker()
	mock.Queue("hub-model",
		"Each specialist should cover one angle.",
		"Combined: all three angles covered.",
	)
	mock.Queue("sa-model", "angle one")
	mock.Queue("sb-model", "angle two")
	mock.Queue("sc-model", "angle three")

	r := newTestRunner(t, cfg, mock)
	res := r.Execute(context.Background(), "cover the angles", "")

	require.True(t, res.Success)
	assert.Equal(t, "Combined: all three angles covered.", res.FinalOutput)
	assert.ElementsMatch(t, []string{"sa", "sb", "sc"}, res.ExecutionGraph["hub"])
	assert.Equal(t, 5, mock.Calls(), "hub pass, three spokes, hub synthesis")

	// Three spokes advance the counter to four before synthesis; the run
	// never hits the iteration cap.
	require.NotEmpty(t, res.AgentUsage)
	synthesis := res.AgentUsage[len(res.AgentUsage)-1]
	assert.Equal(t, "hub", synthesis.Agent)
	assert.Equal(t, 4, synthesis.Iteration)
}

func TestHubSynthesisFailureMarksRunFailed(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology:    core.TopologySwarm,
		Interaction: core.InteractionHubAndSpoke,
		HubAgent:    "hub",
		Agents: []core.AgentConfig{
			{Name: "hub", Role: core.RoleHub, Provider: "openai", Model: "hub-model"},
			{Name: "sa", Role: core.RoleSpoke, Provider: "openai", Model: "sa-model"},
		},
	}
	calls := 0
	inv := invokerFunc(func(_ context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
		calls++
		if req.Model == "hub-model" && calls > 2 {
			return nil, errors.New("synthesis provider down")
		}
		return &core.GenerateResponse{Content: "ok", Model: req.Model}, nil
	})

	r, err := New(cfg, func(o *Options) {
		o.Invoker = inv
		o.RetryOptions = retryNone()
	})
	require.NoError(t, err)
	res := r.Execute(context.Background(), "task", "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "final synthesis failed")
	assert.Equal(t, "ok", res.Outputs["sa"], "spoke output survives the failure")
}

func TestSwarmSequentialChain(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology: core.TopologySwarm,
		Agents: []core.AgentConfig{
			{Name: "first", Provider: "openai", Model: "m1"},
			{Name: "second", Provider: "openai", Model: "m2"},
			{Name: "third", Provider: "openai", Model: "m3", CanFinalize: true},
		},
	}
	mock := core.NewMockInvoker()
	mock.Queue("m1", "opening thoughts")
	mock.Queue("m2", "building on that")
	mock.Queue("m3", "closing argument")

	r := newTestRunner(t, cfg, mock)
	res := r.Execute(context.Background(), "discuss", "")

	require.True(t, res.Success)
	assert.Equal(t, []string{"second"}, res.ExecutionGraph["first"])
	assert.Equal(t, []string{"third"}, res.ExecutionGraph["second"])
	assert.Equal(t, "closing argument", res.FinalOutput, "last agent's output wins")

	// The second agent's prompt carries the first agent's output.
	reqs := mock.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].Prompt, "opening thoughts")
}

func TestSwarmSequentialStopMarker(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology: core.TopologySwarm,
		Agents: []core.AgentConfig{
			{Name: "first", Provider: "openai", Model: "m1"},
			{Name: "second", Provider: "openai", Model: "m2"},
			{Name: "third", Provider: "openai", Model: "m3"},
		},
	}
	mock := core.NewMockInvoker()
	mock.Queue("m1", "opening thoughts")
	mock.Queue("m2", "Nothing more to add. STOP")

	r := newTestRunner(t, cfg, mock)
	res := r.Execute(context.Background(), "discuss", "")

	require.True(t, res.Success)
	assert.Equal(t, 2, mock.Calls(), "the STOP marker skips the remaining agents")
	assert.Empty(t, res.ExecutionGraph["second"])
	assert.Contains(t, res.FinalOutput, "Nothing more to add")
}

func TestRAGRetrievalInPrompt(t *testing.T) {
	cfg := core.WorkflowConfig{
		Topology: core.TopologyRAG,
		Agents: []core.AgentConfig{
			{Name: "answerer", Role: core.RoleRAG, Provider: "openai", Model: "rag-model"},
		},
	}
	mock := core.NewMockInvoker()
	mock.Queue("rag-model", "[ACTION: final] Grounded answer.")

	r := newTestRunner(t, cfg, mock, func(o *Options) {
		o.Retriever = staticRetriever{docs: []core.Document{
			{Content: "fact alpha", Score: 0.9},
			{Content: "fact beta", Score: 0.8},
		}}
	})
	res := r.Execute(context.Background(), "what is alpha?", "")

	require.True(t, res.Success)
	assert.Equal(t, "Grounded answer.", res.FinalOutput)
	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "fact alpha")
	assert.Contains(t, reqs[0].Prompt, "fact beta")
}

type staticRetriever struct {
	docs []core.Document
}

func (s staticRetriever) SimilaritySearch(context.Context, string, int, string, float64) ([]core.Document, error) {
	return s.docs, nil
}

type invokerFunc func(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error)

func (f invokerFunc) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
	return f(ctx, req)
}

func TestCancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := core.NewMockInvoker()
	r := newTestRunner(t, supervisorConfig(), mock)
	res := r.Execute(ctx, "never starts", "")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "context canceled")
	assert.Zero(t, mock.Calls())
}

func TestConfigValidation(t *testing.T) {
	mock := core.NewMockInvoker()

	_, err := New(core.WorkflowConfig{Topology: "mesh"}, func(o *Options) { o.Invoker = mock })
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(core.WorkflowConfig{
		Topology:   core.TopologySupervisor,
		Supervisor: &core.AgentConfig{Name: "S", Role: core.RoleSupervisor, Model: "m"},
	}, func(o *Options) { o.Invoker = mock })
	require.ErrorAs(t, err, &cfgErr, "supervisor without workers")

	cfg := supervisorConfig()
	cfg.AllowedEdges = map[string][]string{"S": {"ghost"}}
	_, err = New(cfg, func(o *Options) { o.Invoker = mock })
	require.ErrorAs(t, err, &cfgErr, "allow-list names an unknown agent")

	cfg = supervisorConfig()
	cfg.Workers = append(cfg.Workers, core.AgentConfig{Name: "S", Model: "dup"})
	_, err = New(cfg, func(o *Options) { o.Invoker = mock })
	require.ErrorAs(t, err, &cfgErr, "duplicate agent names")
}

func TestAllowListSubstitution(t *testing.T) {
	cfg := supervisorConfig()
	cfg.AllowedEdges = map[string][]string{"S": {"W2"}}
	cfg.Substitution = core.SubstituteFirst

	mock := core.NewMockInvoker()
	mock.Queue("sup-model",
		"[ACTION: delegate to W1] blocked handoff",
		"[ACTION: final] done anyway",
	)
	mock.Queue("w2-model", "W2 picked it up")

	r := newTestRunner(t, cfg, mock)
	res := r.Execute(context.Background(), "task", "")

	require.True(t, res.Success)
	assert.Equal(t, []string{"W2"}, res.ExecutionGraph["S"], "W1 was substituted by the allowed target")
	assert.Equal(t, "W2 picked it up", res.Outputs["W2"])
}

func TestNoOutputMessage(t *testing.T) {
	cfg := supervisorConfig()
	cfg.MaxIterations = 1
	inv := invokerFunc(func(_ context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
		return nil, errors.New("everything is down")
	})
	r, err := New(cfg, func(o *Options) {
		o.Invoker = inv
		o.RetryOptions = retryNone()
	})
	require.NoError(t, err)

	res := r.Execute(context.Background(), "task", "")
	require.True(t, res.Success, "absorbed errors do not fail the run")
	assert.Equal(t, noOutputMessage, res.FinalOutput)
}

func TestToolUseStaysWithAgent(t *testing.T) {
	cfg := supervisorConfig()
	cfg.Workers[0].CanUseTools = true
	cfg.Workers[0].Tools = []string{"web_search"}

	mock := core.NewMockInvoker()
	mock.Queue("sup-model",
		"[ACTION: delegate to W1] find sources",
		"[ACTION: final] sourced and done",
	)
	mock.Queue("w1-model",
		`[TOOL: web_search]{"query": "primary sources"}[/TOOL]`,
		"Found three solid sources.",
	)

	// The response cache must not replay the tool-tag reply on the
	// follow-up pass: the tool result makes the follow-up prompt distinct.
	var handlerCalls int
	reg := toolRegistryWithSearch(t, &handlerCalls)
	r := newTestRunner(t, cfg, mock, func(o *Options) {
		o.Tools = reg
		o.Cache = toolkit.NewCache()
	})
	res := r.Execute(context.Background(), "cite sources", "")

	require.True(t, res.Success)
	assert.Equal(t, "sourced and done", res.FinalOutput)
	assert.Equal(t, 4, mock.Calls(), "the tool pass re-invokes the same worker")
	assert.Equal(t, 1, handlerCalls, "the tool runs once, not once per pass")

	// The worker's follow-up request carries the tool envelope.
	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[2].Prompt, "Tool results:")
	assert.Contains(t, reqs[2].Prompt, `"hits":3`)

	var sawTool bool
	for _, d := range res.Decisions {
		if d.Kind == core.DecisionUseTool && d.ToolName == "web_search" {
			sawTool = true
		}
	}
	assert.True(t, sawTool)
}

func toolRegistryWithSearch(t *testing.T, calls *int) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.Definition{
		Name:        "web_search",
		Description: "search",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Required: true},
		},
		Handler: func(context.Context, map[string]any) (any, error) {
			*calls++
			return map[string]any{"hits": 3}, nil
		},
	}))
	return reg
}
