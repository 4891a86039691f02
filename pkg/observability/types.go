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
// Package observability provides tracing for the GraphBus runtime.
//
// Every publish, handler delivery, direct invocation and lifecycle phase is
// wrapped in a span. Notable moments inside a span (a cascade publish being
// queued or aborted, a handler panic, a shutdown drain timeout) are recorded
// as span events. Tracers are pluggable: NoOpTracer is the default,
// LogTracer writes finished spans to zap, and MockTracer captures spans for
// tests.
//
//	ctx, span := tracer.StartSpan(ctx, observability.SpanBusPublish)
//	defer tracer.EndSpan(span)
//	span.SetAttribute(observability.AttrTopic, "/Hello/MessageGenerated")
package observability

import (
	"sync"
	"time"
)

// SpanEvent is a point-in-time occurrence within a span.
type SpanEvent struct {
	At         time.Time
	Name       string
	Attributes map[string]interface{}
}

// Span is a single timed operation. A span is written by the goroutine that
// started it; events may also be added by handlers running under it.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string // empty for root spans

	Name       string
	Attributes map[string]interface{}

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration // set by EndSpan

	// Err is the failure recorded with RecordError, nil on success
	Err error

	mu     sync.Mutex
	events []SpanEvent
}

// SetAttribute sets a key-value attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]interface{})
	}
	s.Attributes[key] = value
}

// AddEvent records a named event with optional attributes.
func (s *Span) AddEvent(name string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SpanEvent{At: time.Now(), Name: name, Attributes: attrs})
}

// Events returns the recorded events in order.
func (s *Span) Events() []SpanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpanEvent(nil), s.events...)
}

// RecordError marks the span failed.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Err = err
	s.SetAttribute(AttrErrorMessage, err.Error())
}

// Failed reports whether an error was recorded.
func (s *Span) Failed() bool { return s.Err != nil }

// SpanOption configures a span at creation.
type SpanOption func(*Span)

// WithAttribute sets an attribute at span creation.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(s *Span) {
		s.SetAttribute(key, value)
	}
}

// WithSpanKind tags the span with a kind (internal, producer, consumer).
func WithSpanKind(kind string) SpanOption {
	return func(s *Span) {
		s.SetAttribute(AttrSpanKind, kind)
	}
}
