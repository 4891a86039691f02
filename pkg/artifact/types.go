// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package artifact loads the static artifact set produced by the GraphBus
// build phase and validates it into an immutable runtime Model.
//
// An artifact directory contains:
//
//	agents.json         agent definitions (methods, subscriptions, arbiter flag)
//	graph.json          dependency graph {nodes, edges}; must be acyclic
//	topics.json         declared topic registry (optional, introspection only)
//	build_summary.json  build metadata (ignored by the runtime)
//
// Loading is all-or-nothing: any missing file, malformed document, schema
// violation, dangling reference or dependency cycle fails the whole load and
// no Model is returned. The loader only parses declarative metadata; it never
// executes agent code.
package artifact

import (
	"github.com/teradata-labs/graphbus/internal/ordered"
)

// Artifact file names.
const (
	AgentsFile       = "agents.json"
	GraphFile        = "graph.json"
	TopicsFile       = "topics.json"
	BuildSummaryFile = "build_summary.json"
)

// FieldSchema maps a field name to its declared type name.
type FieldSchema map[string]string

// MethodSchema declares one callable method of an agent.
type MethodSchema struct {
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema  FieldSchema `json:"input_schema" yaml:"input_schema"`
	OutputSchema FieldSchema `json:"output_schema" yaml:"output_schema"`
}

// Subscription binds a topic pattern to a method of the subscribing agent.
type Subscription struct {
	Topic  string `json:"topic" yaml:"topic"`
	Method string `json:"method" yaml:"method"`

	// Handler is accepted as an alias of Method in agents.json
	Handler string `json:"handler,omitempty" yaml:"-"`
}

// AgentDefinition is the declarative description of one agent.
type AgentDefinition struct {
	Name          string         `json:"name" yaml:"name"`
	Mode          string         `json:"mode,omitempty" yaml:"mode,omitempty"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Methods       []MethodSchema `json:"methods" yaml:"methods"`
	Subscriptions []Subscription `json:"subscriptions" yaml:"subscriptions"`
	IsArbiter     bool           `json:"is_arbiter" yaml:"is_arbiter"`
	Dependencies  []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Method returns the schema of the named method.
func (a *AgentDefinition) Method(name string) (*MethodSchema, bool) {
	for i := range a.Methods {
		if a.Methods[i].Name == name {
			return &a.Methods[i], true
		}
	}
	return nil, false
}

// MethodNames returns method names in declaration order.
func (a *AgentDefinition) MethodNames() []string {
	names := make([]string, len(a.Methods))
	for i, m := range a.Methods {
		names[i] = m.Name
	}
	return names
}

// Edge is a dependency edge: From is initialized before To.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// TopicRecord is one entry of the declared topic registry.
type TopicRecord struct {
	Path      string   `json:"path" yaml:"path"`
	Producers []string `json:"producers" yaml:"producers"`
	Consumers []string `json:"consumers" yaml:"consumers"`
}

// graphDocument is the on-disk shape of graph.json.
type graphDocument struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Model is the validated, immutable in-memory artifact set.
type Model struct {
	dir    string
	agents *ordered.Map[string, *AgentDefinition]
	graph  *DependencyGraph
	topics []TopicRecord
	order  []string
}

// Dir returns the directory the model was loaded from ("" for in-memory models).
func (m *Model) Dir() string { return m.dir }

// Agents returns all agent definitions in declaration order.
func (m *Model) Agents() []*AgentDefinition { return m.agents.Values() }

// AgentNames returns agent names in declaration order.
func (m *Model) AgentNames() []string { return m.agents.Keys() }

// Agent returns the named definition.
func (m *Model) Agent(name string) (*AgentDefinition, bool) { return m.agents.Get(name) }

// Len returns the number of agent definitions.
func (m *Model) Len() int { return m.agents.Len() }

// Graph returns the dependency graph.
func (m *Model) Graph() *DependencyGraph { return m.graph }

// Topics returns the declared topic registry (empty when topics.json was absent).
func (m *Model) Topics() []TopicRecord {
	out := make([]TopicRecord, len(m.topics))
	copy(out, m.topics)
	return out
}

// StartupOrder returns the validated topological initialization order.
func (m *Model) StartupOrder() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
