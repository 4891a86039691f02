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
package observability

// Standard span names. Use these constants instead of hardcoding strings.
const (
	SpanArtifactLoad       = "artifact.load"
	SpanArtifactWatchEvent = "artifact.watch.event"

	SpanRuntimeStart    = "runtime.start"
	SpanRuntimeShutdown = "runtime.shutdown"
	SpanRuntimeInvoke   = "runtime.invoke"

	SpanNodeInvoke = "node.invoke"

	SpanBusPublish = "bus.publish"
	SpanBusDeliver = "bus.deliver"
)

// Standard attribute keys.
const (
	AttrTopic       = "graphbus.topic"
	AttrEventID     = "graphbus.event_id"
	AttrDepth       = "graphbus.depth"
	AttrNode        = "graphbus.node"
	AttrMethod      = "graphbus.method"
	AttrSource      = "graphbus.source"
	AttrTargets     = "graphbus.targets"
	AttrArtifactDir = "graphbus.artifact_dir"
	AttrNodeCount   = "graphbus.nodes"

	AttrMaxDepth = "graphbus.max_depth"
	AttrSpanKind = "span.kind"

	AttrErrorMessage = "error.message"
)

// Span event names.
const (
	EventCascadeQueued = "cascade.queued"
	EventCascadeAbort  = "cascade.abort"
	EventHandlerPanic  = "handler.panic"
	EventDrainTimeout  = "shutdown.drain_timeout"
)

// Metric names passed to Tracer.RecordMetric.
const (
	MetricPublishDeliveries = "graphbus.publish.deliveries"
	MetricPublishErrors     = "graphbus.publish.errors"
	MetricInvokeDurationMs  = "graphbus.invoke.duration_ms"
)
