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
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/registry"
)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger shared by every runtime component.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the observability tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithCatalog supplies the agent factories. Agents missing from the catalog
// are created with no handlers.
func WithCatalog(catalog *registry.Catalog) Option {
	return func(e *Executor) {
		e.catalog = catalog
	}
}

// WithMaxCascadeDepth sets the deepest nested publish allowed.
func WithMaxCascadeDepth(depth int) Option {
	return func(e *Executor) {
		e.maxCascadeDepth = depth
	}
}

// WithWildcards enables or disables "/prefix/*" subscription patterns.
func WithWildcards(enabled bool) Option {
	return func(e *Executor) {
		e.wildcards = enabled
	}
}

// WithSchemaValidation checks handler arguments and results against the
// declared method schemas.
func WithSchemaValidation(enabled bool) Option {
	return func(e *Executor) {
		e.validateSchemas = enabled
	}
}

// WithStrictBindings fails startup when a declared method has no handler.
func WithStrictBindings(enabled bool) Option {
	return func(e *Executor) {
		e.strictBindings = enabled
	}
}
