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
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/internal/ordered"
	"github.com/teradata-labs/graphbus/pkg/topic"
)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger        *zap.Logger
	requireTopics bool
}

// WithLogger sets the loader's logger.
func WithLogger(logger *zap.Logger) LoadOption {
	return func(o *loadOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRequiredTopics makes topics.json mandatory.
func WithRequiredTopics() LoadOption {
	return func(o *loadOptions) { o.requireTopics = true }
}

// Load reads and validates the artifact set in dir.
func Load(ctx context.Context, dir string, opts ...LoadOption) (*Model, error) {
	o := loadOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Kind: ErrMissingFile, File: dir, Detail: "artifact directory not found"}
		}
		return nil, fmt.Errorf("failed to stat artifact directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, &Error{Kind: ErrMissingFile, File: dir, Detail: "not a directory"}
	}

	var agents []AgentDefinition
	if _, err := readDocument(ctx, dir, AgentsFile, "agents", true, &agents); err != nil {
		return nil, err
	}

	var graph graphDocument
	if _, err := readDocument(ctx, dir, GraphFile, "", true, &graph); err != nil {
		return nil, err
	}

	var topics []TopicRecord
	found, err := readDocument(ctx, dir, TopicsFile, "topics", o.requireTopics, &topics)
	if err != nil {
		return nil, err
	}
	if !found {
		o.logger.Debug("no topic registry in artifact set", zap.String("dir", dir))
	}

	model, err := build(dir, agents, NewDependencyGraph(graph.Nodes, graph.Edges), graph.Nodes, topics, o.logger)
	if err != nil {
		return nil, err
	}

	o.logger.Info("artifacts loaded",
		zap.String("dir", dir),
		zap.Int("agents", model.Len()),
		zap.Int("edges", len(model.graph.Edges())),
		zap.Int("topics", len(model.topics)),
		zap.Strings("startup_order", model.order))
	return model, nil
}

// NewModel validates in-memory definitions the same way Load validates files.
// graph may be nil, in which case agent dependencies alone define the order.
// The caller's graph is copied and never modified.
func NewModel(agents []AgentDefinition, graph *DependencyGraph, topics []TopicRecord) (*Model, error) {
	if graph == nil {
		graph = NewDependencyGraph(nil, nil)
	}
	declared := graph.Nodes()
	return build("", agents, NewDependencyGraph(declared, graph.Edges()), declared, topics, zap.NewNop())
}

// readDocument loads file from dir into out. It returns found=false without
// error when the file is absent and not required. wrapper names an optional
// top-level object key holding the document (e.g. {"agents": [...]}).
func readDocument(ctx context.Context, dir, file, wrapper string, required bool, out interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if required {
				return false, &Error{Kind: ErrMissingFile, File: file, Detail: path}
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		detail := "invalid JSON"
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			detail = fmt.Sprintf("invalid JSON at byte %d", syntaxErr.Offset)
		}
		return false, &Error{Kind: ErrMalformedJSON, File: file, Detail: detail, Err: err}
	}

	if wrapper != "" {
		if obj, ok := doc.(map[string]interface{}); ok {
			if inner, ok := obj[wrapper]; ok {
				doc = inner
			}
		}
	}

	if err := validateDocument(file, doc); err != nil {
		return false, err
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return false, &Error{Kind: ErrMalformedJSON, File: file, Err: err}
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return false, &Error{Kind: ErrSchemaMismatch, File: file, Err: err}
	}
	return true, nil
}

// build runs semantic validation and assembles the model. Every problem is
// collected so a broken artifact set is reported in one pass.
func build(dir string, defs []AgentDefinition, graph *DependencyGraph, declaredNodes []string, topics []TopicRecord, logger *zap.Logger) (*Model, error) {
	var errs error
	agents := ordered.New[string, *AgentDefinition]()

	for i := range defs {
		def := copyDefinition(defs[i])
		field := fmt.Sprintf("agents[%d]", i)

		if def.Name == "" {
			errs = multierr.Append(errs, newError(ErrSchemaMismatch, AgentsFile, field+".name", "agent name is empty"))
			continue
		}
		if _, dup := agents.Get(def.Name); dup {
			errs = multierr.Append(errs, newError(ErrSchemaMismatch, AgentsFile, field+".name", "duplicate agent name %q", def.Name))
			continue
		}

		seen := make(map[string]bool, len(def.Methods))
		for j, m := range def.Methods {
			if m.Name == "" {
				errs = multierr.Append(errs, newError(ErrSchemaMismatch, AgentsFile, fmt.Sprintf("%s.methods[%d]", field, j), "method name is empty"))
				continue
			}
			if seen[m.Name] {
				errs = multierr.Append(errs, newError(ErrSchemaMismatch, AgentsFile, fmt.Sprintf("%s.methods[%d]", field, j), "duplicate method %q on agent %q", m.Name, def.Name))
			}
			seen[m.Name] = true
		}

		agents.Set(def.Name, def)
	}

	for _, def := range agents.Values() {
		for j := range def.Subscriptions {
			sub := &def.Subscriptions[j]
			field := fmt.Sprintf("%s.subscriptions[%d]", def.Name, j)

			if sub.Method == "" {
				sub.Method = sub.Handler
			} else if sub.Handler != "" && sub.Handler != sub.Method {
				errs = multierr.Append(errs, newError(ErrSchemaMismatch, AgentsFile, field, "method %q and handler %q disagree", sub.Method, sub.Handler))
			}
			sub.Handler = ""

			if err := topic.ValidatePattern(sub.Topic); err != nil {
				errs = multierr.Append(errs, &Error{Kind: ErrSchemaMismatch, File: AgentsFile, Field: field, Err: err})
			}
			if _, ok := def.Method(sub.Method); !ok {
				errs = multierr.Append(errs, newError(ErrUnknownReference, AgentsFile, field, "subscription to %q targets unknown method %s.%s", sub.Topic, def.Name, sub.Method))
			}
		}

		for _, dep := range def.Dependencies {
			if _, ok := agents.Get(dep); !ok {
				errs = multierr.Append(errs, newError(ErrUnknownReference, AgentsFile, def.Name+".dependencies", "unknown agent %q", dep))
				continue
			}
			graph.AddEdge(dep, def.Name)
		}
	}

	for i, n := range declaredNodes {
		if _, ok := agents.Get(n); !ok {
			errs = multierr.Append(errs, newError(ErrUnknownReference, GraphFile, fmt.Sprintf("nodes[%d]", i), "unknown agent %q", n))
		}
	}
	for i, e := range graph.Edges() {
		for _, end := range []string{e.From, e.To} {
			if _, ok := agents.Get(end); !ok {
				errs = multierr.Append(errs, newError(ErrUnknownReference, GraphFile, fmt.Sprintf("edges[%d]", i), "unknown agent %q", end))
			}
		}
	}
	for _, name := range agents.Keys() {
		if !graph.Has(name) {
			logger.Debug("agent absent from graph nodes, adding as isolated node", zap.String("agent", name))
			graph.addNode(name)
		}
	}

	declared := make(map[string]bool, len(topics))
	for i, rec := range topics {
		field := fmt.Sprintf("topics[%d]", i)
		if err := topic.Validate(rec.Path); err != nil {
			errs = multierr.Append(errs, &Error{Kind: ErrSchemaMismatch, File: TopicsFile, Field: field, Err: err})
		}
		if declared[rec.Path] {
			errs = multierr.Append(errs, newError(ErrSchemaMismatch, TopicsFile, field, "duplicate topic %q", rec.Path))
		}
		declared[rec.Path] = true
		for _, name := range append(append([]string{}, rec.Producers...), rec.Consumers...) {
			if _, ok := agents.Get(name); !ok {
				errs = multierr.Append(errs, newError(ErrUnknownReference, TopicsFile, field, "topic %q names unknown agent %q", rec.Path, name))
			}
		}
	}

	if errs != nil {
		return nil, errs
	}

	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	if len(topics) > 0 {
		for _, def := range agents.Values() {
			for _, sub := range def.Subscriptions {
				if !topic.IsWildcard(sub.Topic) && !declared[sub.Topic] {
					logger.Warn("subscription topic not declared in topic registry",
						zap.String("agent", def.Name),
						zap.String("topic", sub.Topic))
				}
			}
		}
	}

	return &Model{
		dir:    dir,
		agents: agents,
		graph:  graph,
		topics: append([]TopicRecord(nil), topics...),
		order:  order,
	}, nil
}

func copyDefinition(def AgentDefinition) *AgentDefinition {
	out := def
	out.Methods = make([]MethodSchema, len(def.Methods))
	for i, m := range def.Methods {
		out.Methods[i] = MethodSchema{
			Name:         m.Name,
			Description:  m.Description,
			InputSchema:  copyFields(m.InputSchema),
			OutputSchema: copyFields(m.OutputSchema),
		}
	}
	out.Subscriptions = append([]Subscription(nil), def.Subscriptions...)
	out.Dependencies = append([]string(nil), def.Dependencies...)
	return &out
}

func copyFields(in FieldSchema) FieldSchema {
	if in == nil {
		return nil
	}
	out := make(FieldSchema, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
