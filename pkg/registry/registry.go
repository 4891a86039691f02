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
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/internal/ordered"
	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/observability"
)

// Config configures a Registry.
type Config struct {
	// ValidateSchemas checks call arguments and results against the declared
	// method schemas. Off by default: the build phase already committed them.
	ValidateSchemas bool

	// StrictBindings rejects nodes that declare a method without a handler.
	StrictBindings bool

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Registry owns the NodeInstances of one runtime.
type Registry struct {
	config Config
	logger *zap.Logger
	tracer observability.Tracer

	mu    sync.RWMutex
	nodes *ordered.Map[string, *NodeInstance]
}

// New creates an empty registry.
func New(config Config) *Registry {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	return &Registry{
		config: config,
		logger: config.Logger,
		tracer: config.Tracer,
		nodes:  ordered.New[string, *NodeInstance](),
	}
}

// Construct builds the node for def and registers it. factory may be nil for
// agents that have no code behind them; their methods stay unbound. env is
// handed to the node's handlers and Starter.
func (r *Registry) Construct(def *artifact.AgentDefinition, factory Factory, env Env) (*NodeInstance, error) {
	if def == nil {
		return nil, fmt.Errorf("agent definition is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes.Get(def.Name); exists {
		return nil, fmt.Errorf("node %s already registered", def.Name)
	}

	var agent Agent
	if factory != nil {
		var err error
		agent, err = factory(def)
		if err != nil {
			return nil, fmt.Errorf("failed to construct agent %s: %w", def.Name, err)
		}
	}

	handlers := make(map[string]HandlerFunc)
	if agent != nil {
		for method, h := range agent.Handlers() {
			if h == nil {
				continue
			}
			if _, declared := def.Method(method); !declared {
				r.logger.Debug("ignoring handler for undeclared method",
					zap.String("node", def.Name),
					zap.String("method", method))
				continue
			}
			handlers[method] = h
		}
	}

	var unbound []string
	for _, m := range def.MethodNames() {
		if _, ok := handlers[m]; !ok {
			unbound = append(unbound, m)
		}
	}
	if len(unbound) > 0 {
		sort.Strings(unbound)
		if r.config.StrictBindings {
			return nil, fmt.Errorf("node %s: %w: %v", def.Name, ErrUnbound, unbound)
		}
		r.logger.Warn("node has unbound methods",
			zap.String("node", def.Name),
			zap.Strings("methods", unbound))
	}

	node := &NodeInstance{
		def:      def,
		agent:    agent,
		handlers: handlers,
		env:      env,
		logger:   r.logger.With(zap.String("node", def.Name)),
		tracer:   r.tracer,
	}

	if r.config.ValidateSchemas {
		node.validators = make(map[string]*methodValidator, len(def.Methods))
		for i := range def.Methods {
			v, err := compileMethod(&def.Methods[i])
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", def.Name, err)
			}
			node.validators[def.Methods[i].Name] = v
		}
	}

	r.nodes.Set(def.Name, node)
	r.logger.Debug("node constructed",
		zap.String("node", def.Name),
		zap.Int("methods", len(def.Methods)),
		zap.Int("bound", len(handlers)),
		zap.Bool("arbiter", def.IsArbiter))
	return node, nil
}

// GetNode returns the named node.
func (r *Registry) GetNode(name string) (*NodeInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	return node, nil
}

// Nodes returns all nodes in construction order.
func (r *Registry) Nodes() []*NodeInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.Values()
}

// Names returns node names in construction order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.Keys()
}

// Len returns the number of nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.Len()
}

// ValidationEnabled reports whether runtime schema validation is on.
func (r *Registry) ValidationEnabled() bool { return r.config.ValidateSchemas }
