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
package bus

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/registry"
	"github.com/teradata-labs/graphbus/pkg/topic"
	"github.com/teradata-labs/graphbus/pkg/types"
)

// harness wires a registry, topic index and bus the way the runtime does.
type harness struct {
	reg    *registry.Registry
	index  *topic.Index
	bus    *MessageBus
	tracer *observability.MockTracer
}

func newHarness(t *testing.T, maxDepth int) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	tracer := observability.NewMockTracer()
	h := &harness{
		reg:    registry.New(registry.Config{Logger: logger, Tracer: tracer}),
		index:  topic.NewIndex(topic.Config{Wildcards: true, Logger: logger}),
		tracer: tracer,
	}
	h.bus = New(h.index, h.reg, Config{MaxCascadeDepth: maxDepth, Logger: logger, Tracer: tracer})
	return h
}

func (h *harness) Publish(ctx context.Context, topicPath string, payload types.Payload) (types.DeliveryReport, error) {
	return h.bus.Publish(ctx, topicPath, payload)
}

func (h *harness) Invoke(ctx context.Context, node, method string, args types.Payload) (types.Payload, error) {
	n, err := h.reg.GetNode(node)
	if err != nil {
		return nil, err
	}
	return n.Invoke(ctx, method, args)
}

// add registers a node whose methods are the keys of handlers and whose
// subscriptions are subs, in order.
func (h *harness) add(t *testing.T, name string, handlers registry.Handlers, subs ...artifact.Subscription) {
	t.Helper()
	methods := make([]string, 0, len(handlers))
	for m := range handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	def := &artifact.AgentDefinition{Name: name, Subscriptions: subs}
	for _, m := range methods {
		def.Methods = append(def.Methods, artifact.MethodSchema{Name: m})
	}

	_, err := h.reg.Construct(def, func(*artifact.AgentDefinition) (registry.Agent, error) { return handlers, nil }, h)
	require.NoError(t, err)
	for _, s := range subs {
		require.NoError(t, h.index.Subscribe(s.Topic, name, s.Method))
	}
}

func sub(topicPath, method string) artifact.Subscription {
	return artifact.Subscription{Topic: topicPath, Method: method}
}

// recorder collects handler activity in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(label string) registry.HandlerFunc {
	return func(context.Context, *registry.Call) (types.Payload, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, label)
		return nil, nil
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	h := newHarness(t, 0)
	rec := &recorder{}
	h.add(t, "C", registry.Handlers{"on": rec.handler("C")}, sub("/orders/created", "on"))
	h.add(t, "A", registry.Handlers{"on": rec.handler("A")}, sub("/orders/created", "on"))
	h.add(t, "B", registry.Handlers{"on": rec.handler("B")}, sub("/orders/created", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/orders/created", types.Payload{"id": 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A", "B"}, rec.list())
	assert.Equal(t, 3, report.DeliveredCount)
	assert.Equal(t, 0, report.CascadeDelivered)
	assert.False(t, report.HasErrors())
	assert.False(t, report.Queued)
	assert.NotEmpty(t, report.EventID)
	assert.Equal(t, Counters{Published: 1, Delivered: 3}, h.bus.Stats())
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := newHarness(t, 0)
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/nobody/listens", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalDelivered())
	assert.Equal(t, Counters{Published: 1}, h.bus.Stats())
}

func TestPublish_FailureIsolation(t *testing.T) {
	h := newHarness(t, 0)
	rec := &recorder{}
	boom := errors.New("boom")

	h.add(t, "First", registry.Handlers{"on": rec.handler("First")}, sub("/jobs/run", "on"))
	h.add(t, "Failing", registry.Handlers{"on": func(context.Context, *registry.Call) (types.Payload, error) {
		return nil, boom
	}}, sub("/jobs/run", "on"))
	h.add(t, "Panicking", registry.Handlers{"on": func(context.Context, *registry.Call) (types.Payload, error) {
		panic("unexpected state")
	}}, sub("/jobs/run", "on"))
	h.add(t, "Last", registry.Handlers{"on": rec.handler("Last")}, sub("/jobs/run", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/jobs/run", nil)
	require.NoError(t, err, "handler failures are reported, not returned")

	assert.Equal(t, []string{"First", "Last"}, rec.list())
	assert.Equal(t, 2, report.DeliveredCount)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "Failing", report.Errors[0].Node)
	assert.ErrorIs(t, report.Errors[0], boom)
	assert.ErrorIs(t, report.Errors[0], registry.ErrHandlerError)
	assert.Equal(t, "Panicking", report.Errors[1].Node)
	var panicErr *registry.PanicError
	assert.ErrorAs(t, report.Errors[1], &panicErr)

	panics := h.tracer.GetEvents(observability.EventHandlerPanic)
	require.Len(t, panics, 1)
	assert.Equal(t, "unexpected state", panics[0].Attributes["panic"])

	assert.Equal(t, Counters{Published: 1, Delivered: 2, Errors: 2}, h.bus.Stats())
}

func TestPublish_UnknownNodeIsADeliveryError(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.index.Subscribe("/x", "Ghost", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/x", nil)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], registry.ErrNodeNotFound)
	assert.Equal(t, int64(1), h.bus.Stats().Errors)
}

func TestPublish_CascadeIsBreadthFirst(t *testing.T) {
	h := newHarness(t, 0)
	rec := &recorder{}
	var depths sync.Map

	republish := func(label string, topics ...string) registry.HandlerFunc {
		return func(ctx context.Context, call *registry.Call) (types.Payload, error) {
			rec.handler(label)(ctx, call) //nolint:errcheck
			depths.Store(label, call.Event.Depth)
			for _, tp := range topics {
				report, err := call.Publish(ctx, tp, types.Payload{"from": label})
				if err != nil {
					return nil, err
				}
				if !report.Queued || report.DeliveredCount != 0 {
					return nil, errors.New("nested publish was not queued")
				}
			}
			return nil, nil
		}
	}

	h.add(t, "X", registry.Handlers{"on": republish("X@/a", "/b", "/c")}, sub("/a", "on"))
	h.add(t, "Y", registry.Handlers{"on": republish("Y@/a", "/d")}, sub("/a", "on"))
	h.add(t, "Z", registry.Handlers{
		"b": republish("Z@/b", "/e"),
		"c": rec.handler("Z@/c"),
		"d": rec.handler("Z@/d"),
		"e": republish("Z@/e"),
	}, sub("/b", "b"), sub("/c", "c"), sub("/d", "d"), sub("/e", "e"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/a", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"X@/a", "Y@/a", "Z@/b", "Z@/c", "Z@/d", "Z@/e"}, rec.list())
	assert.Equal(t, 2, report.DeliveredCount)
	assert.Equal(t, 4, report.CascadeDelivered)
	assert.Empty(t, report.Errors)

	d, _ := depths.Load("Z@/b")
	assert.Equal(t, 1, d)
	d, _ = depths.Load("Z@/e")
	assert.Equal(t, 2, d)

	assert.Equal(t, Counters{Published: 5, Delivered: 6}, h.bus.Stats())
}

func TestPublish_CascadeLimit(t *testing.T) {
	h := newHarness(t, 3)
	var runs atomic.Int32
	var mu sync.Mutex
	var publishErrs []error

	h.add(t, "Echo", registry.Handlers{"on": func(ctx context.Context, call *registry.Call) (types.Payload, error) {
		runs.Add(1)
		if _, err := call.Publish(ctx, "/loop", call.Args); err != nil {
			mu.Lock()
			publishErrs = append(publishErrs, err)
			mu.Unlock()
		}
		return nil, nil
	}}, sub("/loop", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/loop", types.Payload{"n": 0})
	require.NoError(t, err)

	assert.Equal(t, int32(4), runs.Load(), "root delivery plus three nested deliveries")
	assert.Equal(t, 1, report.DeliveredCount)
	assert.Equal(t, 3, report.CascadeDelivered)

	require.Len(t, publishErrs, 1)
	assert.ErrorIs(t, publishErrs[0], ErrCascadeLimitExceeded)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], ErrCascadeLimitExceeded)
	assert.Equal(t, 4, report.Errors[0].Depth)

	assert.Equal(t, Counters{Published: 4, Delivered: 4, CascadeAborts: 1}, h.bus.Stats())

	queued := h.tracer.GetEvents(observability.EventCascadeQueued)
	assert.Len(t, queued, 3)
	aborts := h.tracer.GetEvents(observability.EventCascadeAbort)
	require.Len(t, aborts, 1)
	assert.Equal(t, 4, aborts[0].Attributes[observability.AttrDepth])
	assert.Equal(t, 3, aborts[0].Attributes[observability.AttrMaxDepth])
	assert.Equal(t, "/loop", aborts[0].Attributes[observability.AttrTopic])
}

func TestPublish_CascadeLimitPropagatedByHandler(t *testing.T) {
	h := newHarness(t, 3)
	h.add(t, "Echo", registry.Handlers{"on": func(ctx context.Context, call *registry.Call) (types.Payload, error) {
		_, err := call.Publish(ctx, "/loop", nil)
		return nil, err
	}}, sub("/loop", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/loop", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.DeliveredCount)
	assert.Equal(t, 2, report.CascadeDelivered, "the depth-3 handler failed")
	require.Len(t, report.Errors, 2)
	assert.ErrorIs(t, report.Errors[0], ErrCascadeLimitExceeded)
	assert.ErrorIs(t, report.Errors[1], registry.ErrHandlerError)
	assert.ErrorIs(t, report.Errors[1], ErrCascadeLimitExceeded)

	assert.Equal(t, Counters{Published: 4, Delivered: 3, Errors: 1, CascadeAborts: 1}, h.bus.Stats())
}

func TestPublish_WildcardSubscriber(t *testing.T) {
	h := newHarness(t, 0)
	rec := &recorder{}
	h.add(t, "Exact", registry.Handlers{"on": rec.handler("Exact")}, sub("/Hello/MessageGenerated", "on"))
	h.add(t, "Any", registry.Handlers{"on": rec.handler("Any")}, sub("/Hello/*", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/Hello/MessageGenerated", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeliveredCount)

	report, err = h.bus.Publish(context.Background(), "/Hello/Other", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeliveredCount)

	report, err = h.bus.Publish(context.Background(), "/Hello/Other/Deep", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.DeliveredCount)

	assert.Equal(t, []string{"Exact", "Any", "Any"}, rec.list())
}

func TestPublish_EventFromContext(t *testing.T) {
	h := newHarness(t, 0)
	var seen *types.Event
	h.add(t, "Inspector", registry.Handlers{"on": func(ctx context.Context, _ *registry.Call) (types.Payload, error) {
		ev, ok := EventFromContext(ctx)
		if !ok {
			return nil, errors.New("no event in context")
		}
		seen = ev
		return nil, nil
	}}, sub("/inspect", "on"))
	h.index.Freeze()

	report, err := h.bus.Publish(context.Background(), "/inspect", types.Payload{"k": "v"})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, report.EventID, seen.ID)
	assert.Equal(t, "v", seen.Payload["k"])
	assert.Equal(t, "", seen.Source)

	_, ok := EventFromContext(context.Background())
	assert.False(t, ok)
}

func TestPublish_InvalidTopicAndClosed(t *testing.T) {
	h := newHarness(t, 0)
	h.index.Freeze()

	_, err := h.bus.Publish(context.Background(), "no-leading-slash", nil)
	assert.ErrorIs(t, err, topic.ErrInvalidTopic)
	assert.Equal(t, int64(0), h.bus.Stats().Published)

	require.NoError(t, h.bus.Close())
	require.NoError(t, h.bus.Close())
	_, err = h.bus.Publish(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublish_ConcurrentRootPublishes(t *testing.T) {
	h := newHarness(t, 2)
	var handled atomic.Int64
	h.add(t, "Counter", registry.Handlers{"on": func(ctx context.Context, call *registry.Call) (types.Payload, error) {
		handled.Add(1)
		if call.Event.Depth == 0 {
			_, err := call.Publish(ctx, "/count", nil)
			return nil, err
		}
		return nil, nil
	}}, sub("/count", "on"))
	h.index.Freeze()

	const publishers = 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := h.bus.Publish(context.Background(), "/count", nil)
			assert.NoError(t, err)
			assert.Equal(t, 1, report.DeliveredCount)
			assert.Equal(t, 1, report.CascadeDelivered)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2*publishers), handled.Load())
	assert.Equal(t, Counters{Published: 2 * publishers, Delivered: 2 * publishers}, h.bus.Stats())
}

func TestTopicStats(t *testing.T) {
	h := newHarness(t, 0)
	h.add(t, "Sink", registry.Handlers{
		"ok":   func(context.Context, *registry.Call) (types.Payload, error) { return nil, nil },
		"fail": func(context.Context, *registry.Call) (types.Payload, error) { return nil, errors.New("no") },
	}, sub("/b", "ok"), sub("/b", "fail"))
	h.index.Freeze()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := h.bus.Publish(ctx, "/b", nil)
		require.NoError(t, err)
	}
	_, err := h.bus.Publish(ctx, "/a", nil)
	require.NoError(t, err)

	b, ok := h.bus.TopicStats("/b")
	require.True(t, ok)
	assert.Equal(t, int64(2), b.TotalPublished)
	assert.Equal(t, int64(2), b.TotalDelivered)
	assert.Equal(t, int64(2), b.TotalErrors)
	assert.False(t, b.LastPublishAt.IsZero())

	_, ok = h.bus.TopicStats("/never")
	assert.False(t, ok)

	all := h.bus.AllTopicStats()
	require.Len(t, all, 2)
	assert.Equal(t, "/a", all[0].Topic)
	assert.Equal(t, "/b", all[1].Topic)
}

func TestPublish_Spans(t *testing.T) {
	h := newHarness(t, 0)
	h.add(t, "Traced", registry.Handlers{"on": func(context.Context, *registry.Call) (types.Payload, error) {
		return nil, nil
	}}, sub("/traced", "on"))
	h.index.Freeze()

	_, err := h.bus.Publish(context.Background(), "/traced", nil)
	require.NoError(t, err)

	publish := h.tracer.GetSpanByName(observability.SpanBusPublish)
	deliver := h.tracer.GetSpanByName(observability.SpanBusDeliver)
	require.NotNil(t, publish)
	require.NotNil(t, deliver)
	assert.Equal(t, publish.SpanID, deliver.ParentID)
	assert.Equal(t, "/traced", publish.Attributes[observability.AttrTopic])
	assert.Equal(t, 1, publish.Attributes["delivered"])
	assert.Equal(t, "Traced", deliver.Attributes[observability.AttrNode])
	assert.NotEmpty(t, h.tracer.GetMetrics())
}

func TestNew_DefaultDepth(t *testing.T) {
	b := New(topic.NewIndex(topic.Config{}), registry.New(registry.Config{}), Config{})
	assert.Equal(t, DefaultMaxCascadeDepth, b.MaxCascadeDepth())
}
