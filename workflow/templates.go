package workflow

import "github.com/agentloom/agentloom/core"

// Default prompt templates per topology and role, used when an agent declares
// no template of its own. Placeholders are filled by the prompt package.
const (
	supervisorTemplate = `You are coordinating a team of worker agents.

Task: {input}

Worker outputs so far:
{worker_outputs}

This is routing pass {iteration}.
{available_agents}

{make_decision}`

	workerTemplate = `You are a specialist worker agent.

Task: {input}

Instructions from your supervisor:
{context}

{available_tools}

{make_decision}`

	swarmSequentialTemplate = `You are one agent in a collaborating sequence.

Task: {input}

Outputs from agents before you:
{previous_outputs}

{make_decision}`

	hubTemplate = `You are the hub of a team of specialist agents.

Task: {input}

This is routing pass {iteration}.
{available_agents}

Break the task down and describe what each specialist should contribute.`

	spokeTemplate = `You are a specialist agent reporting to a hub coordinator.

Task: {input}

The hub's direction:
{hub_output}

Provide your specialist contribution.`

	ragTemplate = `Answer the question using the retrieved context below.

Question: {input}

Retrieved context:
{retrieved_information}

{available_tools}

{make_decision}`

	peerTemplate = `Task: {input}

Outputs from previous agents:
{previous_outputs}

Provide your contribution.`
)

func defaultTemplate(wf core.WorkflowConfig, agent core.AgentConfig) string {
	switch wf.Topology {
	case core.TopologySupervisor:
		if agent.Role == core.RoleSupervisor {
			return supervisorTemplate
		}
		return workerTemplate
	case core.TopologySwarm:
		if wf.Interaction == core.InteractionHubAndSpoke {
			if agent.Role == core.RoleHub || agent.Name == wf.HubAgent {
				return hubTemplate
			}
			return spokeTemplate
		}
		return swarmSequentialTemplate
	case core.TopologyRAG:
		return ragTemplate
	default:
		return peerTemplate
	}
}
