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
// Package bus implements the GraphBus message bus: synchronous, ordered
// publish/subscribe dispatch between the nodes of one runtime.
//
// A root Publish delivers its event to every resolved subscriber, in
// subscription order, on the caller's goroutine. Events published by a
// handler (using the ctx it was given) are not delivered in-line: they are
// queued behind the current event and drained breadth-first before the root
// Publish returns. Each nested event is one level deeper than the event whose
// handler published it; publishing beyond the configured maximum depth fails
// with ErrCascadeLimitExceeded and leaves earlier deliveries in place.
//
// A failing or panicking handler never stops delivery to the remaining
// subscribers. Failures are counted and listed in the root DeliveryReport.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/internal/csync"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/registry"
	"github.com/teradata-labs/graphbus/pkg/topic"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// DefaultMaxCascadeDepth is used when Config.MaxCascadeDepth is zero.
const DefaultMaxCascadeDepth = 16

var (
	// ErrCascadeLimitExceeded fails a nested publish deeper than the limit.
	ErrCascadeLimitExceeded = errors.New("cascade limit exceeded")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("message bus is closed")
)

// Resolver resolves topics to subscribers.
type Resolver interface {
	Resolve(topic string) []topic.Target
}

// Nodes looks up the node a subscriber names.
type Nodes interface {
	GetNode(name string) (*registry.NodeInstance, error)
}

// Config configures a MessageBus.
type Config struct {
	// MaxCascadeDepth is the deepest nested publish allowed. The root
	// publish has depth 0. Zero means DefaultMaxCascadeDepth.
	MaxCascadeDepth int

	Logger *zap.Logger
	Tracer observability.Tracer
}

// MessageBus dispatches events to subscribed node methods.
// All operations are safe for concurrent use by multiple goroutines.
type MessageBus struct {
	router   Resolver
	nodes    Nodes
	maxDepth int
	tracer   observability.Tracer
	logger   *zap.Logger

	// Metrics (atomic counters)
	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalErrors    atomic.Int64
	cascadeAborts  atomic.Int64

	// Topic → counters, created on first publish
	topics *csync.Map[string, *topicCounters]

	closed atomic.Bool
}

// New creates a bus dispatching through router to nodes.
func New(router Resolver, nodes Nodes, config Config) *MessageBus {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}
	if config.MaxCascadeDepth <= 0 {
		config.MaxCascadeDepth = DefaultMaxCascadeDepth
	}

	return &MessageBus{
		router:   router,
		nodes:    nodes,
		maxDepth: config.MaxCascadeDepth,
		tracer:   config.Tracer,
		logger:   config.Logger,
		topics:   csync.NewMap[string, *topicCounters](),
	}
}

// MaxCascadeDepth returns the configured cascade limit.
func (b *MessageBus) MaxCascadeDepth() int { return b.maxDepth }

// Publish publishes payload on topicPath.
//
// Called with a handler's ctx, the event is queued behind the current
// dispatch and a report with Queued set is returned; its deliveries are
// reported to the root caller. Otherwise Publish is a root publish: it
// returns once the event and its whole cascade have been delivered.
func (b *MessageBus) Publish(ctx context.Context, topicPath string, payload types.Payload) (types.DeliveryReport, error) {
	if b.closed.Load() {
		return types.DeliveryReport{}, ErrClosed
	}
	if err := topic.Validate(topicPath); err != nil {
		return types.DeliveryReport{}, err
	}

	if f := frameFrom(ctx); f != nil && f.d.active() {
		return b.enqueue(ctx, f, topicPath, payload)
	}
	return b.publishRoot(ctx, topicPath, payload), nil
}

// enqueue queues a nested publish made from inside a handler.
// The handler's span records the outcome as a span event.
func (b *MessageBus) enqueue(ctx context.Context, f *frame, topicPath string, payload types.Payload) (types.DeliveryReport, error) {
	child := f.event.Child(topicPath, payload.Clone(), f.node)
	span := observability.SpanFromContext(ctx)

	if child.Depth > b.maxDepth {
		b.cascadeAborts.Add(1)
		err := fmt.Errorf("%w: publish to %s from %s at depth %d (max %d)",
			ErrCascadeLimitExceeded, topicPath, f.node, child.Depth, b.maxDepth)
		f.d.record(func(r *types.DeliveryReport) {
			r.Errors = append(r.Errors, types.DeliveryError{
				Topic: topicPath,
				Depth: child.Depth,
				Err:   err,
			})
		})
		if span != nil {
			span.AddEvent(observability.EventCascadeAbort, map[string]interface{}{
				observability.AttrTopic:    topicPath,
				observability.AttrDepth:    child.Depth,
				observability.AttrMaxDepth: b.maxDepth,
			})
		}
		b.logger.Warn("cascade limit exceeded",
			zap.String("topic", topicPath),
			zap.String("source", f.node),
			zap.Int("depth", child.Depth),
			zap.Int("max_depth", b.maxDepth))
		return types.DeliveryReport{EventID: child.ID, Topic: topicPath}, err
	}

	b.accept(child)
	f.d.push(child)
	if span != nil {
		span.AddEvent(observability.EventCascadeQueued, map[string]interface{}{
			observability.AttrTopic:   topicPath,
			observability.AttrEventID: child.ID,
			observability.AttrDepth:   child.Depth,
		})
	}

	b.logger.Debug("bus publish queued",
		zap.String("topic", topicPath),
		zap.String("event_id", child.ID),
		zap.String("source", f.node),
		zap.Int("depth", child.Depth))

	return types.DeliveryReport{EventID: child.ID, Topic: topicPath, Queued: true}, nil
}

// publishRoot delivers a root event and drains its cascade.
func (b *MessageBus) publishRoot(ctx context.Context, topicPath string, payload types.Payload) types.DeliveryReport {
	event := types.NewEvent(topicPath, payload.Clone())
	d := &dispatch{report: types.DeliveryReport{EventID: event.ID, Topic: topicPath}}

	start := time.Now()
	b.accept(event)
	d.push(event)
	for ev := d.pop(); ev != nil; ev = d.pop() {
		b.dispatchEvent(ctx, d, ev)
	}

	report := d.snapshot()
	labels := map[string]string{"topic": topicPath}
	b.tracer.RecordMetric(observability.MetricPublishDeliveries, float64(report.TotalDelivered()), labels)
	b.tracer.RecordMetric(observability.MetricPublishErrors, float64(len(report.Errors)), labels)

	b.logger.Debug("bus publish",
		zap.String("topic", topicPath),
		zap.String("event_id", event.ID),
		zap.Int("delivered", report.DeliveredCount),
		zap.Int("cascade_delivered", report.CascadeDelivered),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("latency", time.Since(start)))

	return report
}

// accept counts an event as published.
func (b *MessageBus) accept(ev *types.Event) {
	b.totalPublished.Add(1)
	tc := b.topicCounters(ev.Topic)
	tc.totalPublished.Add(1)
	tc.lastPublishAt.Store(ev.Timestamp)
}

// dispatchEvent delivers ev to each subscriber in order.
func (b *MessageBus) dispatchEvent(ctx context.Context, d *dispatch, ev *types.Event) {
	ctx, span := b.tracer.StartSpan(ctx, observability.SpanBusPublish,
		observability.WithSpanKind("producer"),
		observability.WithAttribute(observability.AttrTopic, ev.Topic),
		observability.WithAttribute(observability.AttrEventID, ev.ID),
		observability.WithAttribute(observability.AttrDepth, ev.Depth),
		observability.WithAttribute(observability.AttrSource, ev.Source))
	defer b.tracer.EndSpan(span)

	targets := b.router.Resolve(ev.Topic)
	span.SetAttribute(observability.AttrTargets, len(targets))

	delivered, failed := 0, 0
	for _, target := range targets {
		if err := b.deliver(ctx, d, ev, target); err != nil {
			failed++
			continue
		}
		delivered++
	}

	span.SetAttribute("delivered", delivered)
	span.SetAttribute("failed", failed)
}

// deliver runs one subscriber. Failures are recorded, never propagated.
func (b *MessageBus) deliver(ctx context.Context, d *dispatch, ev *types.Event, target topic.Target) error {
	ctx, span := b.tracer.StartSpan(ctx, observability.SpanBusDeliver,
		observability.WithSpanKind("consumer"),
		observability.WithAttribute(observability.AttrTopic, ev.Topic),
		observability.WithAttribute(observability.AttrNode, target.Node),
		observability.WithAttribute(observability.AttrMethod, target.Method))
	defer b.tracer.EndSpan(span)

	tc := b.topicCounters(ev.Topic)

	node, err := b.nodes.GetNode(target.Node)
	if err == nil {
		err = node.Deliver(withFrame(ctx, &frame{d: d, event: ev, node: target.Node}), target.Method, ev)
	}

	if err != nil {
		span.RecordError(err)
		b.totalErrors.Add(1)
		tc.totalErrors.Add(1)
		d.record(func(r *types.DeliveryReport) {
			r.Errors = append(r.Errors, types.DeliveryError{
				Topic:  ev.Topic,
				Node:   target.Node,
				Method: target.Method,
				Depth:  ev.Depth,
				Err:    err,
			})
		})
		b.logger.Warn("bus delivery failed",
			zap.String("topic", ev.Topic),
			zap.String("node", target.Node),
			zap.String("method", target.Method),
			zap.Int("depth", ev.Depth),
			zap.Error(err))
		return err
	}

	b.totalDelivered.Add(1)
	tc.totalDelivered.Add(1)
	d.record(func(r *types.DeliveryReport) {
		if ev.Depth == 0 {
			r.DeliveredCount++
		} else {
			r.CascadeDelivered++
		}
	})
	return nil
}

// Close makes further publishes fail with ErrClosed.
func (b *MessageBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.logger.Info("message bus closed",
		zap.Int64("total_published", b.totalPublished.Load()),
		zap.Int64("total_delivered", b.totalDelivered.Load()),
		zap.Int64("total_errors", b.totalErrors.Load()),
		zap.Int64("cascade_aborts", b.cascadeAborts.Load()))
	return nil
}
