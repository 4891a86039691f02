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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/types"
)

type recordingEnv struct {
	published []string
}

func (e *recordingEnv) Publish(_ context.Context, topic string, _ types.Payload) (types.DeliveryReport, error) {
	e.published = append(e.published, topic)
	return types.DeliveryReport{Topic: topic, Queued: true}, nil
}

func (e *recordingEnv) Invoke(context.Context, string, string, types.Payload) (types.Payload, error) {
	return types.Payload{"ok": true}, nil
}

func helloDefinition() *artifact.AgentDefinition {
	return &artifact.AgentDefinition{
		Name: "HelloService",
		Mode: "service",
		Methods: []artifact.MethodSchema{
			{
				Name:         "generate_message",
				InputSchema:  artifact.FieldSchema{"name": "str"},
				OutputSchema: artifact.FieldSchema{"message": "str"},
			},
			{Name: "reset"},
		},
	}
}

func helloHandlers() Handlers {
	return Handlers{
		"generate_message": func(_ context.Context, call *Call) (types.Payload, error) {
			name, _ := call.Args.String("name")
			return types.Payload{"message": "Hello, " + name + "!"}, nil
		},
		"reset": func(context.Context, *Call) (types.Payload, error) { return nil, nil },
	}
}

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	cfg.Logger = zaptest.NewLogger(t)
	return New(cfg)
}

func staticFactory(a Agent) Factory {
	return func(*artifact.AgentDefinition) (Agent, error) { return a, nil }
}

func TestRegistry_ConstructAndInvoke(t *testing.T) {
	reg := newTestRegistry(t, Config{})
	node, err := reg.Construct(helloDefinition(), staticFactory(helloHandlers()), &recordingEnv{})
	require.NoError(t, err)

	got, err := reg.GetNode("HelloService")
	require.NoError(t, err)
	assert.Same(t, node, got)

	result, err := node.Invoke(context.Background(), "generate_message", types.Payload{"name": "World"})
	require.NoError(t, err)
	assert.Equal(t, types.Payload{"message": "Hello, World!"}, result)

	assert.Equal(t, []string{"generate_message", "reset"}, node.Methods())
	assert.True(t, node.Bound("reset"))
	assert.False(t, node.IsArbiter())
	assert.Equal(t, NodeStats{Invocations: 1}, node.Stats())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"HelloService"}, reg.Names())
}

func TestRegistry_GetNodeNotFound(t *testing.T) {
	reg := newTestRegistry(t, Config{})
	_, err := reg.GetNode("Ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRegistry_ConstructErrors(t *testing.T) {
	reg := newTestRegistry(t, Config{})
	_, err := reg.Construct(helloDefinition(), staticFactory(helloHandlers()), nil)
	require.NoError(t, err)

	_, err = reg.Construct(helloDefinition(), staticFactory(helloHandlers()), nil)
	assert.Error(t, err, "duplicate node")

	boom := errors.New("no database")
	def := helloDefinition()
	def.Name = "Other"
	_, err = reg.Construct(def, func(*artifact.AgentDefinition) (Agent, error) { return nil, boom }, nil)
	assert.ErrorIs(t, err, boom)

	_, err = reg.Construct(nil, nil, nil)
	assert.Error(t, err)
}

func TestRegistry_UnboundMethods(t *testing.T) {
	partial := Handlers{"generate_message": helloHandlers()["generate_message"]}

	t.Run("lenient", func(t *testing.T) {
		reg := newTestRegistry(t, Config{})
		node, err := reg.Construct(helloDefinition(), staticFactory(partial), nil)
		require.NoError(t, err)

		_, err = node.Invoke(context.Background(), "reset", nil)
		assert.ErrorIs(t, err, ErrHandlerError)
		assert.ErrorIs(t, err, ErrUnbound)
		assert.Equal(t, int64(1), node.Stats().Failures)
	})

	t.Run("no factory", func(t *testing.T) {
		reg := newTestRegistry(t, Config{})
		node, err := reg.Construct(helloDefinition(), nil, nil)
		require.NoError(t, err)
		assert.False(t, node.Bound("generate_message"))
		require.NoError(t, node.Start(context.Background()))
		require.NoError(t, node.Stop(context.Background()))
	})

	t.Run("strict", func(t *testing.T) {
		reg := newTestRegistry(t, Config{StrictBindings: true})
		_, err := reg.Construct(helloDefinition(), staticFactory(partial), nil)
		assert.ErrorIs(t, err, ErrUnbound)
		assert.Equal(t, 0, reg.Len())
	})
}

func TestNode_InvokeFailures(t *testing.T) {
	handlerErr := errors.New("upstream unavailable")
	def := &artifact.AgentDefinition{
		Name: "Flaky",
		Methods: []artifact.MethodSchema{
			{Name: "fail"},
			{Name: "explode"},
		},
	}
	reg := newTestRegistry(t, Config{})
	node, err := reg.Construct(def, staticFactory(Handlers{
		"fail":    func(context.Context, *Call) (types.Payload, error) { return nil, handlerErr },
		"explode": func(context.Context, *Call) (types.Payload, error) { panic("nil map") },
		"hidden":  func(context.Context, *Call) (types.Payload, error) { return nil, nil },
	}), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = node.Invoke(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	_, err = node.Invoke(ctx, "hidden", nil)
	assert.ErrorIs(t, err, ErrMethodNotFound, "handlers for undeclared methods are not callable")

	_, err = node.Invoke(ctx, "fail", nil)
	assert.ErrorIs(t, err, ErrHandlerError)
	assert.ErrorIs(t, err, handlerErr)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "Flaky", invErr.Node)
	assert.Equal(t, "fail", invErr.Method)

	_, err = node.Invoke(ctx, "explode", nil)
	assert.ErrorIs(t, err, ErrHandlerError)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "nil map", panicErr.Value)

	assert.Equal(t, NodeStats{Invocations: 4, Failures: 4}, node.Stats())
}

func TestNode_ArgsAreIsolated(t *testing.T) {
	def := &artifact.AgentDefinition{Name: "Mutator", Methods: []artifact.MethodSchema{{Name: "mutate"}}}
	reg := newTestRegistry(t, Config{})
	node, err := reg.Construct(def, staticFactory(Handlers{
		"mutate": func(_ context.Context, call *Call) (types.Payload, error) {
			call.Args["injected"] = true
			return call.Args, nil
		},
	}), nil)
	require.NoError(t, err)

	args := types.Payload{"name": "World"}
	result, err := node.Invoke(context.Background(), "mutate", args)
	require.NoError(t, err)
	assert.Equal(t, true, result["injected"])
	assert.NotContains(t, args, "injected")
}

func TestNode_SchemaValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled passes through", func(t *testing.T) {
		reg := newTestRegistry(t, Config{})
		node, err := reg.Construct(helloDefinition(), staticFactory(helloHandlers()), nil)
		require.NoError(t, err)
		assert.False(t, node.ValidationEnabled())

		result, err := node.Invoke(ctx, "generate_message", types.Payload{"name": 42})
		require.NoError(t, err)
		assert.Equal(t, "Hello, !", result["message"])
	})

	t.Run("enabled", func(t *testing.T) {
		reg := newTestRegistry(t, Config{ValidateSchemas: true})
		node, err := reg.Construct(helloDefinition(), staticFactory(helloHandlers()), nil)
		require.NoError(t, err)
		assert.True(t, node.ValidationEnabled())

		_, err = node.Invoke(ctx, "generate_message", types.Payload{"name": 42})
		assert.ErrorIs(t, err, ErrSchemaViolation)

		_, err = node.Invoke(ctx, "generate_message", types.Payload{})
		assert.ErrorIs(t, err, ErrSchemaViolation)

		_, err = node.Invoke(ctx, "generate_message", nil)
		assert.ErrorIs(t, err, ErrSchemaViolation)

		result, err := node.Invoke(ctx, "generate_message", types.Payload{"name": "World", "extra": 1})
		require.NoError(t, err)
		assert.Equal(t, "Hello, World!", result["message"])

		_, err = node.Invoke(ctx, "reset", nil)
		assert.NoError(t, err)
	})

	t.Run("result checked", func(t *testing.T) {
		reg := newTestRegistry(t, Config{ValidateSchemas: true})
		node, err := reg.Construct(helloDefinition(), staticFactory(Handlers{
			"generate_message": func(context.Context, *Call) (types.Payload, error) {
				return types.Payload{"msg": "typo"}, nil
			},
			"reset": func(context.Context, *Call) (types.Payload, error) { return nil, nil },
		}), nil)
		require.NoError(t, err)

		_, err = node.Invoke(ctx, "generate_message", types.Payload{"name": "World"})
		assert.ErrorIs(t, err, ErrSchemaViolation)
		assert.Contains(t, err.Error(), "result")
	})
}

type lifecycleAgent struct {
	handlers    Handlers
	startedWith Env
	stopped     bool
}

func (a *lifecycleAgent) Handlers() map[string]HandlerFunc { return a.handlers }

func (a *lifecycleAgent) Start(_ context.Context, env Env) error {
	a.startedWith = env
	return nil
}

func (a *lifecycleAgent) Stop(context.Context) error {
	a.stopped = true
	return nil
}

func TestNode_LifecycleAndDelivery(t *testing.T) {
	env := &recordingEnv{}
	agent := &lifecycleAgent{handlers: Handlers{
		"on_message_generated": func(ctx context.Context, call *Call) (types.Payload, error) {
			require.NotNil(t, call.Event)
			_, err := call.Publish(ctx, "/Logger/Logged", call.Args)
			return nil, err
		},
	}}
	def := &artifact.AgentDefinition{
		Name:          "LoggerService",
		Methods:       []artifact.MethodSchema{{Name: "on_message_generated", InputSchema: artifact.FieldSchema{"message": "str"}}},
		Subscriptions: []artifact.Subscription{{Topic: "/Hello/MessageGenerated", Method: "on_message_generated"}},
	}
	tracer := observability.NewMockTracer()
	reg := New(Config{Logger: zaptest.NewLogger(t), Tracer: tracer})
	node, err := reg.Construct(def, staticFactory(agent), env)
	require.NoError(t, err)

	require.NoError(t, node.Start(context.Background()))
	assert.Same(t, env, agent.startedWith)

	event := types.NewEvent("/Hello/MessageGenerated", types.Payload{"message": "Hello, World!"})
	require.NoError(t, node.Deliver(context.Background(), "on_message_generated", event))
	assert.Equal(t, []string{"/Logger/Logged"}, env.published)
	assert.Equal(t, NodeStats{Deliveries: 1}, node.Stats())
	assert.Len(t, node.Subscriptions(), 1)

	span := tracer.GetSpanByName(observability.SpanNodeInvoke)
	require.NotNil(t, span)
	assert.Equal(t, "LoggerService", span.Attributes[observability.AttrNode])

	require.NoError(t, node.Stop(context.Background()))
	assert.True(t, agent.stopped)
}

func TestCall_WithoutEnv(t *testing.T) {
	call := &Call{Node: "Lonely"}
	_, err := call.Publish(context.Background(), "/x", nil)
	assert.Error(t, err)
	_, err = call.Invoke(context.Background(), "a", "b", nil)
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	c.RegisterAgent("HelloService", helloHandlers())
	c.Register("LoggerService", staticFactory(Handlers{}))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"HelloService", "LoggerService"}, c.Names())

	f, ok := c.Lookup("HelloService")
	require.True(t, ok)
	agent, err := f(helloDefinition())
	require.NoError(t, err)
	assert.Contains(t, agent.Handlers(), "generate_message")

	_, ok = c.Lookup("Ghost")
	assert.False(t, ok)

	var nilCatalog *Catalog
	_, ok = nilCatalog.Lookup("HelloService")
	assert.False(t, ok)
}
