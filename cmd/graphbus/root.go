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
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/internal/log"
	"github.com/teradata-labs/graphbus/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "graphbus",
	Short: "GraphBus runtime - execute a compiled agent graph",
	Long: heredoc.Doc(`
		graphbus hosts the static artifact set produced by the GraphBus build phase.

		It loads agents.json, graph.json and topics.json, constructs every agent
		in dependency order and routes published events to subscribed methods.
	`),
	Version:           version.Info(),
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default: $GRAPHBUS_DATA_DIR/graphbus.yaml)")
	flags.StringP("artifacts", "a", "", "artifact directory (default: ./.graphbus)")

	// Runtime flags
	flags.Int("max-cascade-depth", 16, "deepest nested publish allowed")
	flags.Bool("wildcards", true, "enable /prefix/* subscription patterns")
	flags.Bool("validate-schemas", false, "check handler arguments and results against method schemas")
	flags.Bool("strict-bindings", false, "fail startup when a declared method has no handler")
	flags.String("catalog", "hello", "built-in agent catalog to bind (hello, none)")

	// Logging flags
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("log-file", "", "Log file (default: stderr)")

	_ = viper.BindPFlag("artifacts.dir", flags.Lookup("artifacts"))

	_ = viper.BindPFlag("runtime.max_cascade_depth", flags.Lookup("max-cascade-depth"))
	_ = viper.BindPFlag("runtime.wildcard_topics", flags.Lookup("wildcards"))
	_ = viper.BindPFlag("runtime.validate_schemas", flags.Lookup("validate-schemas"))
	_ = viper.BindPFlag("runtime.strict_bindings", flags.Lookup("strict-bindings"))
	_ = viper.BindPFlag("runtime.catalog", flags.Lookup("catalog"))

	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", flags.Lookup("log-file"))
}

// initConfig loads and validates the configuration and installs the
// process logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := log.New(log.Options{
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
		File:   config.Logging.File,
	})
	if err != nil {
		return err
	}
	log.SetLogger(logger.With(zap.String("command", cmd.Name())))
	return nil
}
