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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// NodeStats holds per-node counters.
type NodeStats struct {
	Invocations int64 `json:"invocations" yaml:"invocations"` // direct invocations
	Deliveries  int64 `json:"deliveries" yaml:"deliveries"`   // successful bus deliveries
	Failures    int64 `json:"failures" yaml:"failures"`       // failed calls of either kind
}

// NodeInstance is an agent definition bound to its live handlers. It owns
// its agent value exclusively.
type NodeInstance struct {
	def        *artifact.AgentDefinition
	agent      Agent
	handlers   map[string]HandlerFunc
	validators map[string]*methodValidator // nil when validation is off
	env        Env
	logger     *zap.Logger
	tracer     observability.Tracer

	invocations atomic.Int64
	deliveries  atomic.Int64
	failures    atomic.Int64
}

// Name returns the node name.
func (n *NodeInstance) Name() string { return n.def.Name }

// Definition returns the agent definition the node was built from.
func (n *NodeInstance) Definition() *artifact.AgentDefinition { return n.def }

// IsArbiter reports the arbiter flag. It has no runtime effect.
func (n *NodeInstance) IsArbiter() bool { return n.def.IsArbiter }

// Methods returns declared method names in declaration order.
func (n *NodeInstance) Methods() []string { return n.def.MethodNames() }

// Subscriptions returns the node's declared subscriptions.
func (n *NodeInstance) Subscriptions() []artifact.Subscription {
	return append([]artifact.Subscription(nil), n.def.Subscriptions...)
}

// Bound reports whether method has a handler.
func (n *NodeInstance) Bound(method string) bool {
	_, ok := n.handlers[method]
	return ok
}

// ValidationEnabled reports whether calls are checked against method schemas.
func (n *NodeInstance) ValidationEnabled() bool { return n.validators != nil }

// Stats returns a snapshot of the node's counters.
func (n *NodeInstance) Stats() NodeStats {
	return NodeStats{
		Invocations: n.invocations.Load(),
		Deliveries:  n.deliveries.Load(),
		Failures:    n.failures.Load(),
	}
}

// Invoke calls method directly with args.
func (n *NodeInstance) Invoke(ctx context.Context, method string, args types.Payload) (types.Payload, error) {
	n.invocations.Add(1)
	return n.call(ctx, method, args, nil)
}

// Deliver runs method for a bus event. The handler receives a copy of the
// event payload.
func (n *NodeInstance) Deliver(ctx context.Context, method string, event *types.Event) error {
	_, err := n.call(ctx, method, event.Payload, event)
	if err == nil {
		n.deliveries.Add(1)
	}
	return err
}

func (n *NodeInstance) call(ctx context.Context, method string, args types.Payload, event *types.Event) (result types.Payload, err error) {
	ctx, span := n.tracer.StartSpan(ctx, observability.SpanNodeInvoke,
		observability.WithAttribute(observability.AttrNode, n.def.Name),
		observability.WithAttribute(observability.AttrMethod, method))
	start := time.Now()
	defer func() {
		if err != nil {
			n.failures.Add(1)
			span.RecordError(err)
		}
		n.tracer.EndSpan(span)
		n.tracer.RecordMetric(observability.MetricInvokeDurationMs,
			float64(time.Since(start).Microseconds())/1000,
			map[string]string{"node": n.def.Name, "method": method})
	}()

	if _, ok := n.def.Method(method); !ok {
		return nil, &InvocationError{Node: n.def.Name, Method: method, Kind: ErrMethodNotFound}
	}
	handler, ok := n.handlers[method]
	if !ok {
		return nil, &InvocationError{Node: n.def.Name, Method: method, Kind: ErrHandlerError, Err: ErrUnbound}
	}

	args = args.Clone()
	if v := n.validators[method]; v != nil {
		if verr := validatePayload(v.input, args); verr != nil {
			return nil, &InvocationError{Node: n.def.Name, Method: method, Kind: ErrSchemaViolation, Err: fmt.Errorf("arguments: %w", verr)}
		}
	}

	result, herr := n.safeCall(ctx, handler, &Call{
		Node:   n.def.Name,
		Method: method,
		Args:   args,
		Event:  event,
		Env:    n.env,
	})
	if herr != nil {
		n.logger.Debug("handler failed",
			zap.String("node", n.def.Name),
			zap.String("method", method),
			zap.Error(herr))
		return nil, &InvocationError{Node: n.def.Name, Method: method, Kind: ErrHandlerError, Err: herr}
	}

	if v := n.validators[method]; v != nil {
		if verr := validatePayload(v.output, result); verr != nil {
			return nil, &InvocationError{Node: n.def.Name, Method: method, Kind: ErrSchemaViolation, Err: fmt.Errorf("result: %w", verr)}
		}
	}
	return result, nil
}

// safeCall runs handler, converting a panic into a *PanicError.
func (n *NodeInstance) safeCall(ctx context.Context, handler HandlerFunc, call *Call) (result types.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("handler panicked",
				zap.String("node", call.Node),
				zap.String("method", call.Method),
				zap.Any("panic", r))
			if span := observability.SpanFromContext(ctx); span != nil {
				span.AddEvent(observability.EventHandlerPanic, map[string]interface{}{
					observability.AttrMethod: call.Method,
					"panic":                  fmt.Sprint(r),
				})
			}
			result, err = nil, &PanicError{Value: r}
		}
	}()
	return handler(ctx, call)
}

// Start runs the agent's Starter hook, if any.
func (n *NodeInstance) Start(ctx context.Context) error {
	if s, ok := n.agent.(Starter); ok {
		if err := s.Start(ctx, n.env); err != nil {
			return fmt.Errorf("failed to start node %s: %w", n.def.Name, err)
		}
	}
	return nil
}

// Stop runs the agent's Stopper hook, if any.
func (n *NodeInstance) Stop(ctx context.Context) error {
	if s, ok := n.agent.(Stopper); ok {
		if err := s.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop node %s: %w", n.def.Name, err)
		}
	}
	return nil
}
