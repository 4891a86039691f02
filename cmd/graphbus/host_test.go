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
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/graphbus/examples/hello"
	"github.com/teradata-labs/graphbus/pkg/artifact"
	"github.com/teradata-labs/graphbus/pkg/runtime"
	"github.com/teradata-labs/graphbus/pkg/types"
)

func testConfig(dir string) *Config {
	return &Config{
		Artifacts: ArtifactsConfig{Dir: dir},
		Runtime:   RuntimeConfig{MaxCascadeDepth: 16, WildcardTopics: true, Catalog: "hello", ShutdownTimeoutSeconds: 5},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Addr: ":0"},
		Watch:     WatchConfig{DebounceMs: 50},
	}
}

func helloDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".graphbus")
	require.NoError(t, hello.WriteArtifacts(dir))
	return dir
}

func TestHost_StartAndShutdown(t *testing.T) {
	var out bytes.Buffer
	h := newHost(testConfig(helloDir(t)), zaptest.NewLogger(t), &out, nil)
	require.NoError(t, h.start(context.Background()))

	exec := h.current()
	require.NotNil(t, exec)
	assert.Equal(t, runtime.StateReady, exec.State())

	_, err := exec.Invoke(context.Background(), "PrinterService", "print_message", types.Payload{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out.String(), "hello catalog prints to the host output")

	require.NoError(t, h.shutdown(context.Background()))
	assert.Equal(t, runtime.StateStopped, exec.State())
}

func TestHost_StartFailure(t *testing.T) {
	h := newHost(testConfig(filepath.Join(t.TempDir(), "missing")), zaptest.NewLogger(t), io.Discard, nil)
	err := h.start(context.Background())
	assert.ErrorIs(t, err, artifact.ErrMissingFile)
	assert.Nil(t, h.current())
	assert.NoError(t, h.shutdown(context.Background()))
}

func TestHost_Reload(t *testing.T) {
	dir := helloDir(t)
	metrics := prometheus.NewRegistry()
	h := newHost(testConfig(dir), zaptest.NewLogger(t), io.Discard, metrics)
	require.NoError(t, h.start(context.Background()))
	first := h.current()

	h.reload(context.Background(), artifact.ChangeSet{Dir: dir, Files: []string{artifact.TopicsFile}})

	second := h.current()
	assert.NotSame(t, first, second)
	assert.Equal(t, runtime.StateStopped, first.State())
	assert.Equal(t, runtime.StateReady, second.State())
	assert.Equal(t, 1, h.reloadCount())

	families, err := metrics.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "collector follows the new executor")

	require.NoError(t, h.shutdown(context.Background()))
}

func TestHost_ReloadKeepsRuntimeOnBrokenArtifacts(t *testing.T) {
	dir := helloDir(t)
	h := newHost(testConfig(dir), zaptest.NewLogger(t), io.Discard, nil)
	require.NoError(t, h.start(context.Background()))
	first := h.current()

	require.NoError(t, os.WriteFile(filepath.Join(dir, artifact.GraphFile), []byte(`{"nodes": [`), 0600))
	h.reload(context.Background(), artifact.ChangeSet{Dir: dir, Files: []string{artifact.GraphFile}})

	assert.Same(t, first, h.current())
	assert.Equal(t, runtime.StateReady, first.State())
	assert.Equal(t, 0, h.reloadCount())

	require.NoError(t, h.shutdown(context.Background()))
}

func TestMetricsHandler(t *testing.T) {
	metrics := prometheus.NewRegistry()
	h := newHost(testConfig(helloDir(t)), zaptest.NewLogger(t), io.Discard, metrics)
	require.NoError(t, h.start(context.Background()))
	defer func() { _ = h.shutdown(context.Background()) }()

	_, err := h.current().Publish(context.Background(), hello.TopicMessageGenerated, types.Payload{"message": "Hello, World!"})
	require.NoError(t, err)

	srv := httptest.NewServer(metricsHandler(metrics))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "graphbus_nodes_active 4")
	assert.Contains(t, string(body), "graphbus_messages_published_total 1")
	assert.Contains(t, string(body), `graphbus_topic_delivered_total{topic="/Hello/MessageGenerated"} 1`)
}

func TestPrintSummary(t *testing.T) {
	h := newHost(testConfig(helloDir(t)), zaptest.NewLogger(t), io.Discard, nil)
	require.NoError(t, h.start(context.Background()))
	exec := h.current()

	for i := 0; i < 3; i++ {
		_, err := exec.Publish(context.Background(), hello.TopicMessageGenerated, types.Payload{"message": "m"})
		require.NoError(t, err)
	}
	require.NoError(t, h.shutdown(context.Background()))

	var out bytes.Buffer
	printSummary(&out, exec, 2)
	assert.Contains(t, out.String(), "messages published: 3")
	assert.Contains(t, out.String(), "reloads:            2")
}

func TestCatalogNames(t *testing.T) {
	assert.Equal(t, []string{"hello", "none"}, catalogNames())
}
