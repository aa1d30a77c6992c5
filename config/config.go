// Package config loads workflow declarations from YAML files.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentloom/agentloom/core"
)

// File is the top-level YAML document: one named workflow declaration.
type File struct {
	Name     string              `yaml:"name"`
	Workflow core.WorkflowConfig `yaml:"workflow"`
}

// Load reads and decodes a workflow file.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes a workflow declaration from YAML bytes. Unknown fields are
// rejected so typos surface as load errors instead of silently ignored
// settings.
func Parse(b []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if f.Workflow.Topology == "" {
		return nil, core.Configf("config declares no topology")
	}
	return &f, nil
}
