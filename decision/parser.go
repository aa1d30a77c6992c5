// Package decision maps an agent's raw text reply into one typed
// core.Decision. Parsing runs two tiers behind a single Parser: a strict tag
// grammar ([ACTION: …], [TOOL: …]…[/TOOL]) that is authoritative, and a
// heuristic natural-language tier that can be disabled. Rules are evaluated
// in a fixed order and the first match wins, so identical inputs always
// produce an identical Decision. The parser never panics and never returns
// an error: any internal failure collapses to a respond Decision.
package decision

import (
	"github.com/agentloom/agentloom/core"
	"github.com/agentloom/agentloom/logging"
)

// Context carries the run facts the parser needs to validate targets and
// apply role defaults.
type Context struct {
	Topology        core.Topology
	Interaction     core.Interaction
	AvailableAgents []string
	AgentRoles      map[string]core.Role
	Workers         []string
	HubAgent        string
	Iteration       int
	ToolsAvailable  []string
}

// Options configure a Parser.
type Options struct {
	// DisableHeuristics limits parsing to the strict tag grammar; natural
	// language falls straight through to role defaults and respond.
	DisableHeuristics bool
	Logger            logging.Logger
}

// Parser converts agent replies into decisions.
type Parser struct {
	disableHeuristics bool
	logger            logging.Logger
}

// NewParser constructs a Parser with optional overrides.
func NewParser(optFns ...func(o *Options)) *Parser {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Parser{disableHeuristics: opts.DisableHeuristics, logger: opts.Logger}
}

// Parse interprets text from agentName. Rule order, first match wins:
//
//  1. explicit [ACTION: delegate to X] with validated target
//  2. explicit [ACTION: …] carrying a completion keyword
//  3. explicit [TOOL: name] with JSON or key:value parameters
//  4. natural-language delegation phrases per known agent
//  5. natural-language finality phrases
//  6. natural-language tool-usage phrases against declared tools
//  7. role/topology default
//  8. respond fallback
func (p *Parser) Parse(text, agentName string, role core.Role, ctx Context) (d core.Decision) {
	// A malformed reply must never take the run down; fall back to respond.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("decision parse panicked", "agent", agentName, "panic", r)
			d = respond(agentName, text, "decision parsing failed")
		}
	}()

	if dec, ok := parseActionTag(text, agentName, ctx); ok {
		return dec
	}
	if dec, ok := parseToolTag(text, agentName); ok {
		return dec
	}
	if !p.disableHeuristics {
		if dec, ok := inferDelegation(text, agentName, ctx); ok {
			return dec
		}
		if dec, ok := inferFinality(text, agentName); ok {
			return dec
		}
		if dec, ok := inferToolUsage(text, agentName, ctx); ok {
			return dec
		}
	}
	if dec, ok := roleDefault(text, agentName, role, ctx); ok {
		return dec
	}
	return respond(agentName, text, "Default response")
}

func respond(agent, content, reasoning string) core.Decision {
	return core.Decision{
		Agent:     agent,
		Kind:      core.DecisionRespond,
		Content:   content,
		Reasoning: reasoning,
	}
}
