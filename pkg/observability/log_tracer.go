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

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTracer writes every finished span to a zap logger at debug level
// (error level for failed spans). Metrics are logged the same way.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a tracer backed by logger.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracer{logger: logger.Named("trace")}
}

// StartSpan creates a span.
func (t *LogTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	return startSpan(ctx, uuid.NewString(), uuid.NewString(), name, opts)
}

// EndSpan completes the span and logs it.
func (t *LogTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	finish(span)

	fields := make([]zap.Field, 0, len(span.Attributes)+5)
	fields = append(fields,
		zap.String("span", span.Name),
		zap.String("trace_id", span.TraceID),
		zap.String("parent_id", span.ParentID),
		zap.Duration("duration", span.Duration))
	for k, v := range span.Attributes {
		fields = append(fields, zap.Any(k, v))
	}
	if events := span.Events(); len(events) > 0 {
		names := make([]string, len(events))
		for i, ev := range events {
			names[i] = ev.Name
		}
		fields = append(fields, zap.Strings("events", names))
	}

	if span.Failed() {
		t.logger.Error("span failed", fields...)
		return
	}
	t.logger.Debug("span", fields...)
}

// RecordMetric logs the metric at debug level.
func (t *LogTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.logger.Debug("metric",
		zap.String("name", name),
		zap.Float64("value", value),
		zap.Any("labels", labels))
}

// Flush syncs the underlying logger.
func (t *LogTracer) Flush(ctx context.Context) error {
	_ = t.logger.Sync()
	return nil
}

var _ Tracer = (*LogTracer)(nil)
