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
// Package types holds the value types shared by the GraphBus runtime packages:
// event payloads, published events, delivery reports and statistics snapshots.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the field → value mapping carried by events and method calls.
type Payload map[string]interface{}

// Clone returns a shallow copy of the payload. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the value of key when it holds a string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Event is a single publication on a topic. Events are created at publish time
// and dropped once dispatch completes; the runtime never stores them.
type Event struct {
	// ID uniquely identifies this publication
	ID string

	// Topic is the concrete topic path the event was published on
	Topic string

	// Payload is the event body
	Payload Payload

	// Source is the node whose handler published the event ("" for external callers)
	Source string

	// Depth is the cascade depth: 0 for a root publish, parent depth + 1 for nested ones
	Depth int

	// Timestamp when the event was created
	Timestamp time.Time
}

// NewEvent creates a root event for topic.
func NewEvent(topic string, payload Payload) *Event {
	if payload == nil {
		payload = Payload{}
	}
	return &Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Child creates an event published from within the dispatch of e.
func (e *Event) Child(topic string, payload Payload, source string) *Event {
	child := NewEvent(topic, payload)
	child.Source = source
	child.Depth = e.Depth + 1
	return child
}

// DeliveryError records one failed handler delivery.
type DeliveryError struct {
	Topic  string
	Node   string
	Method string
	Depth  int
	Err    error
}

// Error implements error.
func (d DeliveryError) Error() string {
	if d.Node == "" {
		return fmt.Sprintf("%s (depth %d): %v", d.Topic, d.Depth, d.Err)
	}
	return fmt.Sprintf("%s -> %s.%s (depth %d): %v", d.Topic, d.Node, d.Method, d.Depth, d.Err)
}

// Unwrap returns the underlying handler error.
func (d DeliveryError) Unwrap() error { return d.Err }

// DeliveryReport is the outcome of a publish.
//
// For a root publish the report covers the whole cascade it triggered:
// DeliveredCount counts deliveries of the root event itself, CascadeDelivered
// counts deliveries of nested events, and Errors lists every failure in the
// cascade. A nested publish made from inside a handler returns a report with
// Queued set; its deliveries show up in the root report.
type DeliveryReport struct {
	EventID          string
	Topic            string
	DeliveredCount   int
	CascadeDelivered int
	Errors           []DeliveryError
	Queued           bool
}

// TotalDelivered returns root plus cascade deliveries.
func (r DeliveryReport) TotalDelivered() int {
	return r.DeliveredCount + r.CascadeDelivered
}

// HasErrors reports whether any delivery in the report failed.
func (r DeliveryReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// StatsSnapshot is a point-in-time copy of the runtime counters.
type StatsSnapshot struct {
	NodesActive       int64 `json:"nodes_active" yaml:"nodes_active"`
	MessagesPublished int64 `json:"messages_published" yaml:"messages_published"`
	MessagesDelivered int64 `json:"messages_delivered" yaml:"messages_delivered"`
	Errors            int64 `json:"errors" yaml:"errors"`
	CascadeAborts     int64 `json:"cascade_aborts" yaml:"cascade_aborts"`
	Invocations       int64 `json:"invocations" yaml:"invocations"`
}

// TopicStats holds per-topic publish counters.
type TopicStats struct {
	Topic          string    `json:"topic" yaml:"topic"`
	TotalPublished int64     `json:"total_published" yaml:"total_published"`
	TotalDelivered int64     `json:"total_delivered" yaml:"total_delivered"`
	TotalErrors    int64     `json:"total_errors" yaml:"total_errors"`
	LastPublishAt  time.Time `json:"last_publish_at" yaml:"last_publish_at"`
}
