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
// Package registry binds artifact agent definitions to live handler code.
//
// Agents are plain Go values: an Agent exposes a map of method name to
// HandlerFunc, and a Factory builds one from its AgentDefinition. The
// Registry owns every NodeInstance created from a model; nodes are created
// once at startup and never added or removed while the runtime is ready.
//
// Handlers never reach a global bus. Each call receives an Env through which
// it can publish events or invoke other nodes.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// HandlerFunc handles one method call.
type HandlerFunc func(ctx context.Context, call *Call) (types.Payload, error)

// Call describes a single method call on a node.
type Call struct {
	// Node is the name of the node being called
	Node string

	// Method is the method being called
	Method string

	// Args are the call arguments (the event payload for bus deliveries)
	Args types.Payload

	// Event is the triggering event; nil for a direct invocation
	Event *types.Event

	// Env gives the handler access to the runtime
	Env Env
}

// Publish publishes an event through the call's Env. Publishing with the
// handler's ctx queues the event behind the current dispatch.
func (c *Call) Publish(ctx context.Context, topic string, payload types.Payload) (types.DeliveryReport, error) {
	if c.Env == nil {
		return types.DeliveryReport{}, fmt.Errorf("node %s has no runtime environment", c.Node)
	}
	return c.Env.Publish(ctx, topic, payload)
}

// Invoke calls a method on another node through the call's Env.
func (c *Call) Invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error) {
	if c.Env == nil {
		return nil, fmt.Errorf("node %s has no runtime environment", c.Node)
	}
	return c.Env.Invoke(ctx, node, method, args)
}

// Env is the runtime surface visible to agents.
type Env interface {
	Publish(ctx context.Context, topic string, payload types.Payload) (types.DeliveryReport, error)
	Invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error)
}

// Agent is the live implementation of an agent definition.
type Agent interface {
	// Handlers maps declared method names to their implementations.
	Handlers() map[string]HandlerFunc
}

// Starter is implemented by agents that need setup once all of their
// dependencies have been constructed.
type Starter interface {
	Start(ctx context.Context, env Env) error
}

// Stopper is implemented by agents that release resources at shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Handlers is an Agent made of a bare handler map.
type Handlers map[string]HandlerFunc

// Handlers implements Agent.
func (h Handlers) Handlers() map[string]HandlerFunc { return h }

// Factory builds the agent for def.
type Factory func(def *artifact.AgentDefinition) (Agent, error)

// Catalog maps agent names to factories. It is how a host supplies the code
// behind an artifact set.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (c *Catalog) Register(name string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterAgent registers a factory that always returns agent.
func (c *Catalog) RegisterAgent(name string, agent Agent) {
	c.Register(name, func(*artifact.AgentDefinition) (Agent, error) { return agent, nil })
}

// Lookup returns the factory for name.
func (c *Catalog) Lookup(name string) (Factory, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	return f, ok
}

// Names returns the registered agent names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered factories.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.factories)
}
