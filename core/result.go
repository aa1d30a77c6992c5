package core

// AgentUsage accounts for one agent invocation in the run.
type AgentUsage struct {
	Agent        string `json:"agent"`
	Role         Role   `json:"role"`
	Model        string `json:"model"`
	OutputLength int    `json:"output_length"`
	Iteration    int    `json:"iteration"`
}

// Result is the contract returned to the caller boundary. It always carries a
// success flag; on failure Error holds a human-readable message alongside
// whatever partial outputs and graph accumulated.
type Result struct {
	Success        bool                `json:"success"`
	FinalOutput    string              `json:"final_output"`
	Outputs        map[string]string   `json:"outputs"`
	AgentUsage     []AgentUsage        `json:"agent_usage"`
	ExecutionGraph map[string][]string `json:"execution_graph"`
	Decisions      []Decision          `json:"decisions,omitempty"`
	Error          string              `json:"error,omitempty"`
	ExecutionTime  float64             `json:"execution_time"` // seconds
}
