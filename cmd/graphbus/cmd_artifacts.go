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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/graphbus/examples/hello"
	"github.com/teradata-labs/graphbus/internal/log"
	"github.com/teradata-labs/graphbus/pkg/artifact"
	gbconfig "github.com/teradata-labs/graphbus/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate an artifact set without starting it",
	Long: heredoc.Doc(`
		Load and validate an artifact set. Every problem found is reported:
		missing files, malformed JSON, schema mismatches, unknown references
		and dependency cycles.
	`),
	Example: heredoc.Doc(`
		graphbus validate
		graphbus validate build/.graphbus --require-topics
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [dir]",
	Short: "Print the agents, graph and topics of an artifact set",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the Hello example artifact set",
	Long: heredoc.Doc(`
		Write the Hello example artifact set (HelloService, LoggerService,
		PrinterService and ArbitraryService) into dir, ./.graphbus by default.
		The agents behind it are linked into this binary as the "hello" catalog.
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	validateCmd.Flags().Bool("require-topics", false, "fail when topics.json is missing")
	inspectCmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(initCmd)
}

// artifactsDir returns the directory argument or the configured default.
func artifactsDir(args []string) string {
	if len(args) > 0 {
		return gbconfig.ResolveArtifactsDir(args[0])
	}
	return config.Artifacts.Dir
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := artifactsDir(args)
	requireTopics, _ := cmd.Flags().GetBool("require-topics")

	opts := []artifact.LoadOption{artifact.WithLogger(log.Logger())}
	if requireTopics {
		opts = append(opts, artifact.WithRequiredTopics())
	}
	return validateDir(cmd, dir, opts...)
}

func validateDir(cmd *cobra.Command, dir string, opts ...artifact.LoadOption) error {
	out := cmd.OutOrStdout()

	model, err := artifact.Load(cmd.Context(), dir, opts...)
	if err != nil {
		problems := multierr.Errors(err)
		fmt.Fprintf(out, "❌ %s: %d problem(s)\n", dir, len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "   - %v\n", p)
		}
		return fmt.Errorf("artifact set %s is invalid", dir)
	}

	fmt.Fprintf(out, "✅ %s is valid\n", dir)
	fmt.Fprintf(out, "   agents:        %d\n", model.Len())
	fmt.Fprintf(out, "   edges:         %d\n", len(model.Graph().Edges()))
	fmt.Fprintf(out, "   topics:        %d\n", len(model.Topics()))
	fmt.Fprintf(out, "   startup order: %s\n", strings.Join(model.StartupOrder(), " → "))
	return nil
}

// inspectReport is the serialized view of a model.
type inspectReport struct {
	Dir          string                      `yaml:"dir" json:"dir"`
	StartupOrder []string                    `yaml:"startup_order" json:"startup_order"`
	Agents       []*artifact.AgentDefinition `yaml:"agents" json:"agents"`
	Edges        []artifact.Edge             `yaml:"edges" json:"edges"`
	Topics       []artifact.TopicRecord      `yaml:"topics" json:"topics"`
}

func newInspectReport(model *artifact.Model) inspectReport {
	return inspectReport{
		Dir:          model.Dir(),
		StartupOrder: model.StartupOrder(),
		Agents:       model.Agents(),
		Edges:        model.Graph().Edges(),
		Topics:       model.Topics(),
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")

	model, err := artifact.Load(cmd.Context(), artifactsDir(args), artifact.WithLogger(log.Logger()))
	if err != nil {
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), format, newInspectReport(model))
}

// writeFormatted encodes v as yaml or json.
func writeFormatted(out io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (expected yaml or json)", format)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := artifactsDir(args)
	if err := hello.WriteArtifacts(dir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ wrote Hello artifact set to %s\n", dir)
	return nil
}
