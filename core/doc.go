// Package core defines the shared data model of the orchestration engine:
// agent and workflow configuration, the per-run workflow state, the Decision
// tagged union produced by the decision parser, the execution graph recording
// agent handoffs, the Result contract returned to callers, and the small
// interfaces (Invoker, Retriever) through which the engine reaches external
// collaborators.
//
// Types in this package are plain values owned by exactly one run. State
// transitions never mutate a state in place; they operate on clones so a
// checkpointed snapshot stays valid after the run moves on.
package core
