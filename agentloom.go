// Package agentloom provides a high-level façade over the workflow runner and
// its supporting services (tool registry, response cache, provider throttles,
// checkpointing and logging) enabling rapid construction of multi-agent LLM
// workflows. Most applications interact with this package by:
//  1. Creating an Orchestrator via New() (optionally overriding the defaults)
//  2. Registering tools beyond the builtin catalogue
//  3. Executing declared workflow configurations (Execute / Resume)
//
// The façade delegates orchestration to workflow.Runner while keeping setup
// concise. All defaults are safe for local development and testing;
// production deployments supply real provider invokers, a durable checkpoint
// store and a structured logger.
package agentloom

import (
	"context"

	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/logging"
	"github.com/agentloom/agentloom/tool"
	"github.com/agentloom/agentloom/toolkit"
	"github.com/agentloom/agentloom/workflow"
)

// Options configure the Orchestrator instance.
type Options struct {
	// Invoker reaches the model providers. Required for real runs; defaults
	// to the deterministic mock so examples and tests work offline.
	Invoker core.Invoker

	// Tools defaults to a registry pre-loaded with the builtin catalogue.
	Tools *tool.Registry

	// Cache defaults to an LRU response cache shared across runs. Set to nil
	// via the option function to disable caching entirely.
	Cache *toolkit.Cache

	// Throttles defaults to the stock per-provider budgets.
	Throttles *toolkit.ThrottleSet

	// Checkpoints defaults to an in-memory store; supply a FileStore for
	// durable resume.
	Checkpoints toolkit.CheckpointStore

	// Retriever backs rag workflows and the retrieve_information tool.
	Retriever core.Retriever

	// Logger defaults to the NoOp logger.
	Logger logging.Logger
}

// Orchestrator is the high-level façade owning the shared runtime services.
// It is safe for concurrent use; each Execute builds an isolated run.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator with optional overrides. Unset services are
// initialized with in-memory implementations.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Invoker:     core.NewMockInvoker(),
		Cache:       toolkit.NewCache(),
		Throttles:   toolkit.NewThrottleSet(nil),
		Checkpoints: toolkit.NewMemoryStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
		tool.RegisterBuiltins(opts.Tools)
		if opts.Retriever != nil {
			tool.RegisterRetrieval(opts.Tools, opts.Retriever)
		}
	}
	return &Orchestrator{opts: opts}
}

// Tools exposes the registry so callers can add or replace tools.
func (o *Orchestrator) Tools() *tool.Registry { return o.opts.Tools }

// Runner builds a validated workflow runner for cfg wired to the
// orchestrator's shared services.
func (o *Orchestrator) Runner(cfg core.WorkflowConfig, optFns ...func(wo *workflow.Options)) (*workflow.Runner, error) {
	fns := append([]func(wo *workflow.Options){func(wo *workflow.Options) {
		wo.Invoker = o.opts.Invoker
		wo.Tools = o.opts.Tools
		wo.Cache = o.opts.Cache
		wo.Throttles = o.opts.Throttles
		wo.Checkpoints = o.opts.Checkpoints
		wo.Retriever = o.opts.Retriever
		wo.Logger = o.opts.Logger
	}}, optFns...)
	return workflow.New(cfg, fns...)
}

// Execute validates cfg and runs it to completion. Configuration problems are
// returned as an error; runtime failures are reported inside the Result.
func (o *Orchestrator) Execute(ctx context.Context, cfg core.WorkflowConfig, input string) (*core.Result, error) {
	r, err := o.Runner(cfg)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, input, ""), nil
}

// Resume continues a checkpointed run under cfg from its latest snapshot.
func (o *Orchestrator) Resume(ctx context.Context, cfg core.WorkflowConfig, executionID string) (*core.Result, error) {
	r, err := o.Runner(cfg)
	if err != nil {
		return nil, err
	}
	return r.Resume(ctx, executionID)
}
