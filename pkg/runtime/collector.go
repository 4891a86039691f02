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
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports executor statistics as Prometheus metrics. Values are
// read from the executor on every scrape.
type Collector struct {
	exec *Executor

	nodesActive       *prometheus.Desc
	messagesPublished *prometheus.Desc
	messagesDelivered *prometheus.Desc
	errors            *prometheus.Desc
	cascadeAborts     *prometheus.Desc
	invocations       *prometheus.Desc

	topicPublished *prometheus.Desc
	topicDelivered *prometheus.Desc
	topicErrors    *prometheus.Desc

	nodeInvocations *prometheus.Desc
	nodeDeliveries  *prometheus.Desc
	nodeFailures    *prometheus.Desc
}

// NewCollector creates a collector for exec.
func NewCollector(exec *Executor) *Collector {
	return &Collector{
		exec: exec,

		nodesActive: prometheus.NewDesc(
			"graphbus_nodes_active",
			"Number of live nodes",
			nil, nil,
		),
		messagesPublished: prometheus.NewDesc(
			"graphbus_messages_published_total",
			"Events accepted by the message bus, root and nested",
			nil, nil,
		),
		messagesDelivered: prometheus.NewDesc(
			"graphbus_messages_delivered_total",
			"Successful handler deliveries",
			nil, nil,
		),
		errors: prometheus.NewDesc(
			"graphbus_errors_total",
			"Failed deliveries and failed direct invocations",
			nil, nil,
		),
		cascadeAborts: prometheus.NewDesc(
			"graphbus_cascade_aborts_total",
			"Nested publishes rejected by the cascade limit",
			nil, nil,
		),
		invocations: prometheus.NewDesc(
			"graphbus_invocations_total",
			"Direct node method invocations",
			nil, nil,
		),
		topicPublished: prometheus.NewDesc(
			"graphbus_topic_published_total",
			"Events published per topic",
			[]string{"topic"}, nil,
		),
		topicDelivered: prometheus.NewDesc(
			"graphbus_topic_delivered_total",
			"Successful deliveries per topic",
			[]string{"topic"}, nil,
		),
		topicErrors: prometheus.NewDesc(
			"graphbus_topic_errors_total",
			"Failed deliveries per topic",
			[]string{"topic"}, nil,
		),
		nodeInvocations: prometheus.NewDesc(
			"graphbus_node_invocations_total",
			"Direct invocations per node",
			[]string{"node"}, nil,
		),
		nodeDeliveries: prometheus.NewDesc(
			"graphbus_node_deliveries_total",
			"Successful bus deliveries per node",
			[]string{"node"}, nil,
		),
		nodeFailures: prometheus.NewDesc(
			"graphbus_node_failures_total",
			"Failed calls per node",
			[]string{"node"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodesActive
	ch <- c.messagesPublished
	ch <- c.messagesDelivered
	ch <- c.errors
	ch <- c.cascadeAborts
	ch <- c.invocations
	ch <- c.topicPublished
	ch <- c.topicDelivered
	ch <- c.topicErrors
	ch <- c.nodeInvocations
	ch <- c.nodeDeliveries
	ch <- c.nodeFailures
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.exec.Stats()
	ch <- prometheus.MustNewConstMetric(c.nodesActive, prometheus.GaugeValue, float64(stats.NodesActive))
	ch <- prometheus.MustNewConstMetric(c.messagesPublished, prometheus.CounterValue, float64(stats.MessagesPublished))
	ch <- prometheus.MustNewConstMetric(c.messagesDelivered, prometheus.CounterValue, float64(stats.MessagesDelivered))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(stats.Errors))
	ch <- prometheus.MustNewConstMetric(c.cascadeAborts, prometheus.CounterValue, float64(stats.CascadeAborts))
	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(stats.Invocations))

	for _, ts := range c.exec.AllTopicStats() {
		ch <- prometheus.MustNewConstMetric(c.topicPublished, prometheus.CounterValue, float64(ts.TotalPublished), ts.Topic)
		ch <- prometheus.MustNewConstMetric(c.topicDelivered, prometheus.CounterValue, float64(ts.TotalDelivered), ts.Topic)
		ch <- prometheus.MustNewConstMetric(c.topicErrors, prometheus.CounterValue, float64(ts.TotalErrors), ts.Topic)
	}

	nodeStats := c.exec.NodeStats()
	names := make([]string, 0, len(nodeStats))
	for name := range nodeStats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ns := nodeStats[name]
		ch <- prometheus.MustNewConstMetric(c.nodeInvocations, prometheus.CounterValue, float64(ns.Invocations), name)
		ch <- prometheus.MustNewConstMetric(c.nodeDeliveries, prometheus.CounterValue, float64(ns.Deliveries), name)
		ch <- prometheus.MustNewConstMetric(c.nodeFailures, prometheus.CounterValue, float64(ns.Failures), name)
	}
}
