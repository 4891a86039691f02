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
// Package runtime hosts a GraphBus artifact set: it constructs every agent
// in dependency order, wires their subscriptions into a frozen topic index
// and exposes the Invoke / Publish surface over the message bus.
//
// An Executor is single-use. It moves through
//
//	uninitialized → loading → ready → shutting_down → stopped
//
// and every call made outside the ready state fails with ErrNotReady. A
// failed startup releases whatever it had started and ends in stopped.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/bus"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/registry"
	"github.com/teradata-labs/graphbus/pkg/topic"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// Executor runs one artifact set.
type Executor struct {
	logger  *zap.Logger
	tracer  observability.Tracer
	catalog *registry.Catalog

	maxCascadeDepth int
	wildcards       bool
	validateSchemas bool
	strictBindings  bool

	state atomic.Int32

	// lifecycle serializes startup and shutdown
	lifecycle sync.Mutex

	// gate is held shared by every external call and exclusively by
	// Shutdown while it drains them
	gate sync.RWMutex

	model    *artifact.Model
	order    []string
	registry *registry.Registry
	router   *topic.Index
	bus      *bus.MessageBus
	started  []*registry.NodeInstance

	nodesActive  atomic.Int64
	invocations  atomic.Int64
	invokeErrors atomic.Int64
}

// New creates an executor in the uninitialized state.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger:          zap.NewNop(),
		tracer:          observability.NewNoOpTracer(),
		maxCascadeDepth: bus.DefaultMaxCascadeDepth,
		wildcards:       true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = registry.NewCatalog()
	}
	return e
}

// State returns the current lifecycle state.
func (e *Executor) State() State { return State(e.state.Load()) }

// Load reads the artifact set in dir and starts it.
func (e *Executor) Load(ctx context.Context, dir string, opts ...artifact.LoadOption) error {
	return e.boot(ctx, func(ctx context.Context) (*artifact.Model, error) {
		ctx, span := e.tracer.StartSpan(ctx, observability.SpanArtifactLoad,
			observability.WithAttribute(observability.AttrArtifactDir, dir))
		defer e.tracer.EndSpan(span)

		model, err := artifact.Load(ctx, dir, append([]artifact.LoadOption{artifact.WithLogger(e.logger)}, opts...)...)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.SetAttribute(observability.AttrNodeCount, model.Len())
		return model, nil
	})
}

// Start starts an already loaded model.
func (e *Executor) Start(ctx context.Context, model *artifact.Model) error {
	if model == nil {
		return fmt.Errorf("model cannot be nil")
	}
	return e.boot(ctx, func(context.Context) (*artifact.Model, error) { return model, nil })
}

func (e *Executor) boot(ctx context.Context, load func(context.Context) (*artifact.Model, error)) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoading)) {
		return fmt.Errorf("runtime already started (state %s)", e.State())
	}

	ctx, span := e.tracer.StartSpan(ctx, observability.SpanRuntimeStart)
	defer e.tracer.EndSpan(span)

	start := time.Now()
	model, err := load(ctx)
	if err == nil {
		err = e.startNodes(ctx, model)
	}
	if err != nil {
		span.RecordError(err)
		e.state.Store(int32(StateStopped))
		e.logger.Error("runtime startup failed", zap.Error(err))
		return err
	}

	e.nodesActive.Store(int64(len(e.started)))
	e.state.Store(int32(StateReady))
	span.SetAttribute(observability.AttrNodeCount, len(e.started))

	e.logger.Info("runtime ready",
		zap.String("dir", model.Dir()),
		zap.Int("nodes", len(e.started)),
		zap.Int("subscriptions", e.router.Len()),
		zap.Strings("startup_order", e.order),
		zap.Duration("startup_time", time.Since(start)))
	return nil
}

// startNodes constructs every node in topological order, then wires all
// subscriptions and freezes the router. On failure every node started so
// far is stopped again in reverse order.
func (e *Executor) startNodes(ctx context.Context, model *artifact.Model) (err error) {
	order, err := model.Graph().TopologicalOrder()
	if err != nil {
		return err
	}

	e.model = model
	e.order = order
	e.registry = registry.New(registry.Config{
		ValidateSchemas: e.validateSchemas,
		StrictBindings:  e.strictBindings,
		Logger:          e.logger,
		Tracer:          e.tracer,
	})
	e.router = topic.NewIndex(topic.Config{Wildcards: e.wildcards, Logger: e.logger})
	e.bus = bus.New(e.router, e.registry, bus.Config{
		MaxCascadeDepth: e.maxCascadeDepth,
		Logger:          e.logger,
		Tracer:          e.tracer,
	})

	defer func() {
		if err != nil {
			err = multierr.Append(err, e.release(ctx))
			_ = e.bus.Close()
		}
	}()

	env := &nodeEnv{e: e}
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("startup cancelled: %w", err)
		}

		def, ok := model.Agent(name)
		if !ok {
			return &artifact.Error{Kind: artifact.ErrUnknownReference, File: artifact.GraphFile, Detail: fmt.Sprintf("graph node %q has no agent definition", name)}
		}

		factory, ok := e.catalog.Lookup(name)
		if !ok {
			e.logger.Debug("no factory registered for agent", zap.String("agent", name))
		}

		node, err := e.registry.Construct(def, factory, env)
		if err != nil {
			return err
		}
		if err := node.Start(ctx); err != nil {
			return err
		}
		e.started = append(e.started, node)
	}

	for _, name := range order {
		def, _ := model.Agent(name)
		for _, sub := range def.Subscriptions {
			if err := e.router.Subscribe(sub.Topic, name, sub.Method); err != nil {
				return fmt.Errorf("failed to subscribe %s.%s to %s: %w", name, sub.Method, sub.Topic, err)
			}
		}
	}
	e.router.Freeze()
	return nil
}

// release stops started nodes in reverse startup order.
func (e *Executor) release(ctx context.Context) error {
	var errs error
	for i := len(e.started) - 1; i >= 0; i-- {
		node := e.started[i]
		if err := node.Stop(ctx); err != nil {
			e.logger.Warn("node stop failed", zap.String("node", node.Name()), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	e.started = nil
	e.nodesActive.Store(0)
	return errs
}

// enter admits one external call. The returned func must be called when
// the call completes.
func (e *Executor) enter() (func(), error) {
	if s := e.State(); s != StateReady {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, s)
	}
	e.gate.RLock()
	if e.State() != StateReady {
		e.gate.RUnlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, e.State())
	}
	return e.gate.RUnlock, nil
}

// GetNode returns the named node.
func (e *Executor) GetNode(name string) (*registry.NodeInstance, error) {
	done, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer done()
	return e.registry.GetNode(name)
}

// Nodes returns all nodes in startup order.
func (e *Executor) Nodes() ([]*registry.NodeInstance, error) {
	done, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer done()
	return e.registry.Nodes(), nil
}

// Invoke calls node.method directly with args. It bypasses the bus: no
// routing takes place and no delivery is counted.
func (e *Executor) Invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error) {
	done, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer done()
	return e.invoke(ctx, node, method, args)
}

func (e *Executor) invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error) {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanRuntimeInvoke,
		observability.WithAttribute(observability.AttrNode, node),
		observability.WithAttribute(observability.AttrMethod, method))
	defer e.tracer.EndSpan(span)

	e.invocations.Add(1)
	n, err := e.registry.GetNode(node)
	if err == nil {
		var result types.Payload
		result, err = n.Invoke(ctx, method, args)
		if err == nil {
			return result, nil
		}
	}

	e.invokeErrors.Add(1)
	span.RecordError(err)
	e.logger.Debug("invoke failed",
		zap.String("node", node),
		zap.String("method", method),
		zap.Error(err))
	return nil, err
}

// Publish publishes payload on topicPath and returns once the event and its
// cascade have been delivered.
func (e *Executor) Publish(ctx context.Context, topicPath string, payload types.Payload) (types.DeliveryReport, error) {
	done, err := e.enter()
	if err != nil {
		return types.DeliveryReport{}, err
	}
	defer done()
	return e.bus.Publish(ctx, topicPath, payload)
}

// Stats returns a snapshot of the runtime counters. It is available in every
// state; after shutdown nodes_active is 0 and the other counters keep their
// final values.
func (e *Executor) Stats() types.StatsSnapshot {
	snap := types.StatsSnapshot{
		NodesActive: e.nodesActive.Load(),
		Invocations: e.invocations.Load(),
		Errors:      e.invokeErrors.Load(),
	}
	if b := e.messageBus(); b != nil {
		c := b.Stats()
		snap.MessagesPublished = c.Published
		snap.MessagesDelivered = c.Delivered
		snap.Errors += c.Errors
		snap.CascadeAborts = c.CascadeAborts
	}
	return snap
}

// TopicStats returns the counters of one topic.
func (e *Executor) TopicStats(topicPath string) (types.TopicStats, bool) {
	if b := e.messageBus(); b != nil {
		return b.TopicStats(topicPath)
	}
	return types.TopicStats{}, false
}

// AllTopicStats returns the counters of every published topic, sorted.
func (e *Executor) AllTopicStats() []types.TopicStats {
	if b := e.messageBus(); b != nil {
		return b.AllTopicStats()
	}
	return nil
}

// NodeStats returns per-node counters keyed by node name.
func (e *Executor) NodeStats() map[string]registry.NodeStats {
	out := make(map[string]registry.NodeStats)
	if e.State() < StateReady || e.registry == nil {
		return out
	}
	for _, n := range e.registry.Nodes() {
		out[n.Name()] = n.Stats()
	}
	return out
}

// messageBus returns the bus once startup has finished. It is nil when
// startup failed before the bus was created.
func (e *Executor) messageBus() *bus.MessageBus {
	if e.State() < StateReady {
		return nil
	}
	return e.bus
}

// Model returns the running artifact model (nil before startup).
func (e *Executor) Model() *artifact.Model {
	if e.State() < StateReady {
		return nil
	}
	return e.model
}

// StartupOrder returns the order nodes were constructed in.
func (e *Executor) StartupOrder() []string {
	if e.State() < StateReady {
		return nil
	}
	return append([]string(nil), e.order...)
}

// Subscribers returns the subscribers registered on exactly pattern.
func (e *Executor) Subscribers(pattern string) ([]topic.Target, error) {
	done, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer done()
	return e.router.Subscribers(pattern)
}

// Patterns returns every subscribed topic pattern in registration order.
func (e *Executor) Patterns() []string {
	if e.State() < StateReady || e.router == nil {
		return nil
	}
	return e.router.Patterns()
}

// MaxCascadeDepth returns the effective cascade limit.
func (e *Executor) MaxCascadeDepth() int {
	if b := e.messageBus(); b != nil {
		return b.MaxCascadeDepth()
	}
	return e.maxCascadeDepth
}

// Shutdown refuses new calls, waits for in-flight ones and releases every
// node in reverse startup order. If ctx ends before in-flight calls drain,
// nodes are released anyway and the context error is returned. Shutting
// down a stopped runtime is a no-op.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	switch e.State() {
	case StateStopped:
		return nil
	case StateUninitialized:
		e.state.Store(int32(StateStopped))
		return nil
	}

	ctx, span := e.tracer.StartSpan(ctx, observability.SpanRuntimeShutdown,
		observability.WithAttribute(observability.AttrNodeCount, len(e.started)))
	defer e.tracer.EndSpan(span)

	e.state.Store(int32(StateShuttingDown))
	e.logger.Info("runtime shutting down", zap.Int("nodes", len(e.started)))

	var errs error
	drained := make(chan struct{})
	go func() {
		e.gate.Lock()
		e.gate.Unlock()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		span.AddEvent(observability.EventDrainTimeout, map[string]interface{}{
			observability.AttrErrorMessage: ctx.Err().Error(),
		})
		errs = multierr.Append(errs, fmt.Errorf("in-flight calls did not drain: %w", ctx.Err()))
	}

	errs = multierr.Append(errs, e.release(ctx))
	errs = multierr.Append(errs, e.bus.Close())
	errs = multierr.Append(errs, e.tracer.Flush(ctx))
	e.state.Store(int32(StateStopped))

	stats := e.Stats()
	if errs != nil {
		span.RecordError(errs)
	}
	e.logger.Info("runtime stopped",
		zap.Int64("messages_published", stats.MessagesPublished),
		zap.Int64("messages_delivered", stats.MessagesDelivered),
		zap.Int64("errors", stats.Errors),
		zap.Int64("invocations", stats.Invocations))
	return errs
}

// nodeEnv is the registry.Env handed to handlers. Calls made through it
// belong to an in-flight call and skip the shutdown gate.
type nodeEnv struct {
	e *Executor
}

func (n *nodeEnv) Publish(ctx context.Context, topicPath string, payload types.Payload) (types.DeliveryReport, error) {
	if s := n.e.State(); s != StateReady && s != StateShuttingDown {
		return types.DeliveryReport{}, fmt.Errorf("%w (state %s)", ErrNotReady, s)
	}
	return n.e.bus.Publish(ctx, topicPath, payload)
}

func (n *nodeEnv) Invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error) {
	if s := n.e.State(); s != StateReady && s != StateShuttingDown {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, s)
	}
	return n.e.invoke(ctx, node, method, args)
}
