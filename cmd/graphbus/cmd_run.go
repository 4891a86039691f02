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
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/internal/log"
	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the artifact set and keep the runtime up",
	Long: heredoc.Doc(`
		Load the artifact set, start every agent and serve until interrupted.

		With --watch the artifact directory is watched and the runtime is rebuilt
		whenever agents.json, graph.json or topics.json change. A broken artifact
		set is reported and the running runtime is kept.

		With --metrics the runtime statistics are exported in Prometheus format
		on --metrics-addr at /metrics.
	`),
	Example: heredoc.Doc(`
		graphbus run -a ./.graphbus
		graphbus run --watch --metrics --metrics-addr :9464
	`),
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("watch", false, "reload when the artifact files change")
	runCmd.Flags().Int("debounce-ms", 500, "watch debounce in milliseconds")
	runCmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	runCmd.Flags().String("metrics-addr", ":9464", "metrics listen address")
	runCmd.Flags().Int("shutdown-timeout", 10, "seconds to wait for in-flight calls at shutdown")

	_ = viper.BindPFlag("watch.enabled", runCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("watch.debounce_ms", runCmd.Flags().Lookup("debounce-ms"))
	_ = viper.BindPFlag("metrics.enabled", runCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("runtime.shutdown_timeout_seconds", runCmd.Flags().Lookup("shutdown-timeout"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, config, log.Logger(), cmd.OutOrStdout())
}

// serve runs the host until ctx is done.
func serve(ctx context.Context, cfg *Config, logger *zap.Logger, out io.Writer) error {
	var metrics *prometheus.Registry
	if cfg.Metrics.Enabled {
		metrics = prometheus.NewRegistry()
	}

	h := newHost(cfg, logger, out, metrics)
	if err := h.start(ctx); err != nil {
		return err
	}

	if metrics != nil {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsHandler(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
	}

	if cfg.Watch.Enabled {
		w, err := artifact.NewWatcher(cfg.Artifacts.Dir, artifact.WatcherConfig{
			DebounceMs: cfg.Watch.DebounceMs,
			Logger:     logger,
			OnChange:   h.reload,
		})
		if err != nil {
			_ = h.shutdown(context.Background())
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = h.shutdown(context.Background())
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	fmt.Fprintf(out, "GraphBus runtime ready: %d nodes from %s\n", h.current().Stats().NodesActive, cfg.Artifacts.Dir)
	<-ctx.Done()

	exec := h.current()
	err := h.shutdown(context.Background())
	printSummary(out, exec, h.reloadCount())
	return err
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// printSummary writes the final counters in human-readable form.
func printSummary(out io.Writer, exec *runtime.Executor, reloads int) {
	stats := exec.Stats()
	fmt.Fprintln(out, "GraphBus runtime stopped")
	fmt.Fprintf(out, "  messages published: %s\n", humanize.Comma(stats.MessagesPublished))
	fmt.Fprintf(out, "  messages delivered: %s\n", humanize.Comma(stats.MessagesDelivered))
	fmt.Fprintf(out, "  invocations:        %s\n", humanize.Comma(stats.Invocations))
	fmt.Fprintf(out, "  errors:             %s\n", humanize.Comma(stats.Errors))
	fmt.Fprintf(out, "  cascade aborts:     %s\n", humanize.Comma(stats.CascadeAborts))
	if reloads > 0 {
		fmt.Fprintf(out, "  reloads:            %s\n", humanize.Comma(int64(reloads)))
	}
}
