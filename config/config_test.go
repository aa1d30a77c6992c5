package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloom/agentloom/core"
)

const supervisorYAML = `
name: research-pipeline
workflow:
  topology: supervisor
  max_iterations: 8
  supervisor:
    name: coordinator
    role: supervisor
    provider: anthropic
    model: claude-sonnet
    can_delegate: true
    can_finalize: true
  workers:
    - name: researcher
      role: worker
      provider: openai
      model: gpt-4o-mini
      tools: [web_search]
      can_use_tools: true
    - name: writer
      role: worker
      provider: openai
      model: gpt-4o-mini
  allowed_edges:
    coordinator: [researcher, writer]
  substitution: round_robin
`

func TestParseSupervisorWorkflow(t *testing.T) {
	f, err := Parse([]byte(supervisorYAML))
	require.NoError(t, err)

	assert.Equal(t, "research-pipeline", f.Name)
	wf := f.Workflow
	assert.Equal(t, core.TopologySupervisor, wf.Topology)
	assert.Equal(t, 8, wf.MaxIterations)
	require.NotNil(t, wf.Supervisor)
	assert.Equal(t, "coordinator", wf.Supervisor.Name)
	assert.True(t, wf.Supervisor.CanDelegate)
	require.Len(t, wf.Workers, 2)
	assert.Equal(t, []string{"web_search"}, wf.Workers[0].Tools)
	assert.Equal(t, []string{"researcher", "writer"}, wf.AllowedEdges["coordinator"])
	assert.Equal(t, core.SubstituteRoundRobin, wf.Substitution)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nworkflow:\n  topology: supervisor\n  topologee: oops\n"))
	assert.Error(t, err)
}

func TestParseRequiresTopology(t *testing.T) {
	_, err := Parse([]byte("name: empty\nworkflow: {}\n"))
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(supervisorYAML), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "research-pipeline", f.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
