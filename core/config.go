package core

// Role categorizes how an agent participates in a topology.
type Role string

const (
	// RoleSupervisor coordinates workers and owns the final answer in
	// supervisor topologies.
	RoleSupervisor Role = "supervisor"
	// RoleWorker executes delegated tasks and reports back.
	RoleWorker Role = "worker"
	// RolePeer collaborates without a fixed hierarchy.
	RolePeer Role = "peer"
	// RoleHub is the central agent of a hub-and-spoke swarm.
	RoleHub Role = "hub"
	// RoleSpoke is a satellite agent of a hub-and-spoke swarm.
	RoleSpoke Role = "spoke"
	// RoleRAG is the single retrieval-augmented agent of a rag workflow.
	RoleRAG Role = "rag"
)

// Topology is the declared interaction pattern among agents for a run.
type Topology string

const (
	// TopologySupervisor routes between one supervisor and its workers.
	TopologySupervisor Topology = "supervisor"
	// TopologySwarm runs a set of peer agents, sequentially or hub-and-spoke.
	TopologySwarm Topology = "swarm"
	// TopologyRAG runs a single retrieval-augmented agent.
	TopologyRAG Topology = "rag"
	// TopologyHybrid combines team structures with peer collaboration.
	TopologyHybrid Topology = "hybrid"
)

// Interaction selects the swarm wiring.
type Interaction string

const (
	// InteractionSequential advances through agents in declared order.
	InteractionSequential Interaction = "sequential"
	// InteractionHubAndSpoke routes every spoke through a central hub.
	InteractionHubAndSpoke Interaction = "hub_and_spoke"
)

// Coordination selects how a hybrid workflow schedules its teams and peers.
type Coordination string

const (
	// CoordinationSequential processes teams first, then peers, in order.
	CoordinationSequential Coordination = "sequential"
	// CoordinationParallel fans teams and peers out concurrently and joins
	// before synthesis.
	CoordinationParallel Coordination = "parallel"
	// CoordinationDynamic traverses from a coordinator following delegation
	// markers in agent output, visiting each node at most once.
	CoordinationDynamic Coordination = "dynamic"
	// CoordinationIterative runs fixed rounds with retained per-round history
	// and an early-exit convergence check.
	CoordinationIterative Coordination = "iterative"
)

// SubstitutionPolicy decides the replacement target when a requested
// delegation violates the configured allow-list.
type SubstitutionPolicy string

const (
	// SubstituteFirst picks the first allowed target.
	SubstituteFirst SubstitutionPolicy = "first"
	// SubstituteRoundRobin cycles through allowed targets per source agent.
	SubstituteRoundRobin SubstitutionPolicy = "round_robin"
	// SubstituteLeastUsed picks the allowed target with the fewest recorded
	// handoffs from the source agent.
	SubstituteLeastUsed SubstitutionPolicy = "least_used"
)

// AgentConfig declares one LLM-backed agent participating in a run.
type AgentConfig struct {
	Name           string   `json:"name" yaml:"name"`
	Role           Role     `json:"role" yaml:"role"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Provider       string   `json:"provider" yaml:"provider"`
	Model          string   `json:"model" yaml:"model"`
	PromptTemplate string   `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`
	SystemMessage  string   `json:"system_message,omitempty" yaml:"system_message,omitempty"`
	Temperature    float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Tools          []string `json:"tools,omitempty" yaml:"tools,omitempty"`

	// Capability flags gate which decision instructions the prompt builder
	// injects and which decisions the router honors.
	CanDelegate bool `json:"can_delegate" yaml:"can_delegate"`
	CanUseTools bool `json:"can_use_tools" yaml:"can_use_tools"`
	CanFinalize bool `json:"can_finalize" yaml:"can_finalize"`

	// SkipEnhance leaves the system message untouched even when it carries no
	// decision-format instructions.
	SkipEnhance bool `json:"skip_enhance,omitempty" yaml:"skip_enhance,omitempty"`
}

// TeamConfig groups a supervisor with its workers inside a hybrid workflow.
type TeamConfig struct {
	ID         string        `json:"id" yaml:"id"`
	Supervisor AgentConfig   `json:"supervisor" yaml:"supervisor"`
	Workers    []AgentConfig `json:"workers" yaml:"workers"`
}

// WorkflowConfig declares the full topology for one run.
type WorkflowConfig struct {
	Topology Topology `json:"topology" yaml:"topology"`

	// Supervisor topology.
	Supervisor *AgentConfig  `json:"supervisor,omitempty" yaml:"supervisor,omitempty"`
	Workers    []AgentConfig `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Swarm and rag topologies.
	Agents      []AgentConfig `json:"agents,omitempty" yaml:"agents,omitempty"`
	Interaction Interaction   `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	HubAgent    string        `json:"hub_agent,omitempty" yaml:"hub_agent,omitempty"`

	// Hybrid topology.
	Teams        []TeamConfig  `json:"teams,omitempty" yaml:"teams,omitempty"`
	Peers        []AgentConfig `json:"peers,omitempty" yaml:"peers,omitempty"`
	Coordination Coordination  `json:"coordination,omitempty" yaml:"coordination,omitempty"`
	Coordinator  string        `json:"coordinator,omitempty" yaml:"coordinator,omitempty"`
	FinalAgent   string        `json:"final_agent,omitempty" yaml:"final_agent,omitempty"`
	MaxRounds    int           `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`

	// Router limits and allow-list.
	MaxIterations int                 `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	AllowedEdges  map[string][]string `json:"allowed_edges,omitempty" yaml:"allowed_edges,omitempty"`
	Substitution  SubstitutionPolicy  `json:"substitution,omitempty" yaml:"substitution,omitempty"`
}

// DefaultMaxIterations caps router passes when the config leaves
// MaxIterations unset.
const DefaultMaxIterations = 5

// DefaultMaxRounds bounds iterative hybrid coordination when MaxRounds is
// unset.
const DefaultMaxRounds = 3

// AllAgents returns every agent declared by the config, in declaration order.
func (c *WorkflowConfig) AllAgents() []AgentConfig {
	var out []AgentConfig
	if c.Supervisor != nil {
		out = append(out, *c.Supervisor)
	}
	out = append(out, c.Workers...)
	out = append(out, c.Agents...)
	for _, t := range c.Teams {
		out = append(out, t.Supervisor)
		out = append(out, t.Workers...)
	}
	out = append(out, c.Peers...)
	return out
}

// AgentByName looks up a declared agent config by name.
func (c *WorkflowConfig) AgentByName(name string) (AgentConfig, bool) {
	for _, a := range c.AllAgents() {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}
