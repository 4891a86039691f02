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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/graphbus/pkg/artifact"
)

// execute runs the root command with args against an isolated config.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateConfig(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInitThenValidate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote Hello artifact set")

	out, err = execute(t, "validate", dir, "--require-topics=true")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "agents:        4")
	assert.Contains(t, out, "HelloService → LoggerService → PrinterService")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	dir := helloDir(t)
	graph := `{"nodes": ["HelloService", "Ghost"], "edges": [{"from": "HelloService", "to": "Phantom"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, artifact.GraphFile), []byte(graph), 0600))

	out, err := execute(t, "validate", dir, "--require-topics=false")
	require.Error(t, err)
	assert.Contains(t, out, "❌")
	assert.Contains(t, out, "2 problem(s)")
	assert.Contains(t, out, `unknown agent "Ghost"`)
	assert.Contains(t, out, `unknown agent "Phantom"`)
}

func TestInspect(t *testing.T) {
	dir := helloDir(t)

	out, err := execute(t, "inspect", dir, "-o", "json")
	require.NoError(t, err)
	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, dir, report.Dir)
	assert.Len(t, report.Agents, 4)
	assert.Equal(t, "HelloService", report.StartupOrder[0])

	out, err = execute(t, "inspect", dir, "-o", "yaml")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "startup_order")
	assert.Contains(t, doc, "topics")

	_, err = execute(t, "inspect", dir, "-o", "xml")
	assert.Error(t, err)
}

func TestInvoke(t *testing.T) {
	dir := helloDir(t)
	t.Setenv("GRAPHBUS_ARTIFACTS_DIR", dir)

	out, err := execute(t, "invoke", "HelloService", "generate_message", `{"name": "Ada"}`)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Hello, Ada!", result["message"])

	_, err = execute(t, "invoke", "HelloService", "generate_message", `[1, 2]`)
	assert.ErrorContains(t, err, "payload must be a JSON object")

	_, err = execute(t, "invoke", "NoSuchService", "generate_message")
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	dir := helloDir(t)
	t.Setenv("GRAPHBUS_ARTIFACTS_DIR", dir)

	out, err := execute(t, "publish", "/Hello/MessageGenerated", `{"message": "Hello, World!"}`, "-o", "yaml")
	require.NoError(t, err)

	var got publishOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "/Hello/MessageGenerated", got.Topic)
	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, 1, got.Delivered)
	assert.Empty(t, got.Errors)
	assert.Equal(t, int64(1), got.Stats.MessagesPublished)
	assert.Equal(t, int64(4), got.Stats.NodesActive)
}

func TestPublish_HandlerFailureIsReported(t *testing.T) {
	dir := helloDir(t)
	t.Setenv("GRAPHBUS_ARTIFACTS_DIR", dir)

	out, err := execute(t, "publish", "/Hello/MessageGenerated", `{}`, "-o", "json")
	require.NoError(t, err)

	var got publishOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 0, got.Delivered)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "LoggerService")
	assert.Equal(t, int64(1), got.Stats.Errors)
}

func TestConfigShow(t *testing.T) {
	t.Setenv("GRAPHBUS_RUNTIME_MAX_CASCADE_DEPTH", "9")

	out, err := execute(t, "config", "show", "-o", "json")
	require.NoError(t, err)

	var got Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 9, got.Runtime.MaxCascadeDepth)
	assert.Equal(t, "hello", got.Runtime.Catalog)
}

func TestInvalidConfigFailsEveryCommand(t *testing.T) {
	t.Setenv("GRAPHBUS_RUNTIME_CATALOG", "missing")

	_, err := execute(t, "config", "show")
	assert.ErrorContains(t, err, "unknown runtime.catalog")
}
