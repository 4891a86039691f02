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
package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/examples/hello"
	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/observability"
	"github.com/teradata-labs/graphbus/pkg/registry"
	"github.com/teradata-labs/graphbus/pkg/runtime"
)

const defaultShutdownTimeout = 10 * time.Second

// catalogs are the agent implementations linked into the binary.
var catalogs = map[string]func(logger *zap.Logger, out io.Writer) *registry.Catalog{
	"hello": func(logger *zap.Logger, out io.Writer) *registry.Catalog {
		return hello.New(logger, out).Catalog()
	},
	"none": func(*zap.Logger, io.Writer) *registry.Catalog {
		return registry.NewCatalog()
	},
}

func catalogNames() []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// host owns the running executor. On artifact changes it builds a fresh
// executor and swaps it in only once the new one is ready.
type host struct {
	cfg     *Config
	logger  *zap.Logger
	out     io.Writer
	metrics *prometheus.Registry // nil when metrics are disabled

	mu        sync.RWMutex
	exec      *runtime.Executor
	collector *runtime.Collector
	reloads   int
}

func newHost(cfg *Config, logger *zap.Logger, out io.Writer, metrics *prometheus.Registry) *host {
	return &host{cfg: cfg, logger: logger, out: out, metrics: metrics}
}

func (h *host) newExecutor() *runtime.Executor {
	rc := h.cfg.Runtime
	return runtime.New(
		runtime.WithLogger(h.logger),
		runtime.WithTracer(observability.NewLogTracer(h.logger)),
		runtime.WithCatalog(catalogs[rc.Catalog](h.logger, h.out)),
		runtime.WithMaxCascadeDepth(rc.MaxCascadeDepth),
		runtime.WithWildcards(rc.WildcardTopics),
		runtime.WithSchemaValidation(rc.ValidateSchemas),
		runtime.WithStrictBindings(rc.StrictBindings),
	)
}

// start loads the configured artifact set.
func (h *host) start(ctx context.Context) error {
	exec := h.newExecutor()
	if err := exec.Load(ctx, h.cfg.Artifacts.Dir); err != nil {
		return fmt.Errorf("failed to load artifacts from %s: %w", h.cfg.Artifacts.Dir, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.install(exec)
	return nil
}

// install makes exec current. Caller holds h.mu.
func (h *host) install(exec *runtime.Executor) {
	if h.metrics != nil {
		if h.collector != nil {
			h.metrics.Unregister(h.collector)
		}
		h.collector = runtime.NewCollector(exec)
		h.metrics.MustRegister(h.collector)
	}
	h.exec = exec
}

// reload is the artifact watcher callback. A broken artifact set leaves the
// current executor running.
func (h *host) reload(ctx context.Context, changes artifact.ChangeSet) {
	h.logger.Info("artifacts changed, reloading", zap.Strings("files", changes.Files))

	next := h.newExecutor()
	if err := next.Load(ctx, h.cfg.Artifacts.Dir); err != nil {
		h.logger.Error("reload failed, keeping current runtime", zap.Error(err))
		return
	}

	h.mu.Lock()
	prev := h.exec
	h.install(next)
	h.reloads++
	h.mu.Unlock()

	if prev != nil {
		sctx, cancel := context.WithTimeout(ctx, h.shutdownTimeout())
		defer cancel()
		if err := prev.Shutdown(sctx); err != nil {
			h.logger.Warn("previous runtime did not shut down cleanly", zap.Error(err))
		}
	}
	h.logger.Info("runtime reloaded", zap.Int("nodes", int(next.Stats().NodesActive)))
}

func (h *host) current() *runtime.Executor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exec
}

func (h *host) reloadCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reloads
}

func (h *host) shutdownTimeout() time.Duration {
	if h.cfg.Runtime.ShutdownTimeoutSeconds <= 0 {
		return defaultShutdownTimeout
	}
	return time.Duration(h.cfg.Runtime.ShutdownTimeoutSeconds) * time.Second
}

// shutdown stops the current executor.
func (h *host) shutdown(ctx context.Context) error {
	exec := h.current()
	if exec == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, h.shutdownTimeout())
	defer cancel()
	return exec.Shutdown(sctx)
}
