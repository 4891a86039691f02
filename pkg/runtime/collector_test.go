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
package runtime

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollector(t *testing.T) {
	exec := New(WithLogger(zaptest.NewLogger(t)), WithCatalog(chainCatalog(&lifecycle{})))
	require.NoError(t, exec.Start(context.Background(), chainModel(t)))

	_, err := exec.Publish(context.Background(), "/chain/event", nil)
	require.NoError(t, err)
	_, err = exec.Invoke(context.Background(), "A", "ping", nil)
	require.NoError(t, err)

	families := gather(t, NewCollector(exec))

	single := func(name string) float64 {
		f, ok := families[name]
		require.True(t, ok, name)
		require.Len(t, f.GetMetric(), 1, name)
		m := f.GetMetric()[0]
		if f.GetType() == dto.MetricType_GAUGE {
			return m.GetGauge().GetValue()
		}
		return m.GetCounter().GetValue()
	}

	assert.Equal(t, float64(3), single("graphbus_nodes_active"))
	assert.Equal(t, float64(1), single("graphbus_messages_published_total"))
	assert.Equal(t, float64(2), single("graphbus_messages_delivered_total"))
	assert.Equal(t, float64(0), single("graphbus_errors_total"))
	assert.Equal(t, float64(1), single("graphbus_invocations_total"))
	assert.Equal(t, float64(1), single("graphbus_topic_published_total"))

	topic := families["graphbus_topic_published_total"].GetMetric()[0].GetLabel()
	require.Len(t, topic, 1)
	assert.Equal(t, "topic", topic[0].GetName())
	assert.Equal(t, "/chain/event", topic[0].GetValue())

	nodes := families["graphbus_node_deliveries_total"]
	require.NotNil(t, nodes)
	assert.Len(t, nodes.GetMetric(), 3)
}

func TestCollector_BeforeStart(t *testing.T) {
	families := gather(t, NewCollector(New()))

	assert.Contains(t, families, "graphbus_nodes_active")
	assert.NotContains(t, families, "graphbus_topic_published_total")
	assert.NotContains(t, families, "graphbus_node_invocations_total")
}
