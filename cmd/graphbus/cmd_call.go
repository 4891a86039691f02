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
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/graphbus/internal/log"
	"github.com/teradata-labs/graphbus/pkg/types"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <node> <method> [json-args]",
	Short: "Call one node method directly",
	Long: heredoc.Doc(`
		Start the runtime, call node.method with the given JSON object and print
		the result. Direct invocation bypasses the message bus.
	`),
	Example: heredoc.Doc(`
		graphbus invoke HelloService generate_message '{"name": "World"}'
	`),
	Args: cobra.RangeArgs(2, 3),
	RunE: runInvoke,
}

var publishCmd = &cobra.Command{
	Use:   "publish <topic> [json-payload]",
	Short: "Publish one event and print its delivery report",
	Long: heredoc.Doc(`
		Start the runtime, publish the JSON payload on topic and print the
		delivery report, including deliveries made by the cascade it triggered.
	`),
	Example: heredoc.Doc(`
		graphbus publish /Hello/MessageGenerated '{"message": "Hello, World!"}'
	`),
	Args: cobra.RangeArgs(1, 2),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringP("output", "o", "yaml", "output format (yaml, json)")

	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(publishCmd)
}

// parsePayload decodes an optional JSON object argument.
func parsePayload(args []string, i int) (types.Payload, error) {
	if len(args) <= i || args[i] == "" {
		return types.Payload{}, nil
	}
	var p types.Payload
	if err := json.Unmarshal([]byte(args[i]), &p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return p, nil
}

// withHost starts a host for a single command and shuts it down afterwards.
func withHost(cmd *cobra.Command, fn func(ctx context.Context, h *host) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	h := newHost(config, log.Logger(), cmd.OutOrStdout(), nil)
	if err := h.start(ctx); err != nil {
		return err
	}
	defer func() {
		if serr := h.shutdown(context.Background()); err == nil {
			err = serr
		}
	}()
	return fn(ctx, h)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	payload, err := parsePayload(args, 2)
	if err != nil {
		return err
	}

	return withHost(cmd, func(ctx context.Context, h *host) error {
		result, err := h.current().Invoke(ctx, args[0], args[1], payload)
		if err != nil {
			return err
		}
		return writeFormatted(cmd.OutOrStdout(), "json", result)
	})
}

// publishOutput is the printed form of a delivery report.
type publishOutput struct {
	EventID          string              `yaml:"event_id" json:"event_id"`
	Topic            string              `yaml:"topic" json:"topic"`
	Delivered        int                 `yaml:"delivered" json:"delivered"`
	CascadeDelivered int                 `yaml:"cascade_delivered" json:"cascade_delivered"`
	Errors           []string            `yaml:"errors,omitempty" json:"errors,omitempty"`
	Stats            types.StatsSnapshot `yaml:"stats" json:"stats"`
}

func runPublish(cmd *cobra.Command, args []string) error {
	payload, err := parsePayload(args, 1)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")

	return withHost(cmd, func(ctx context.Context, h *host) error {
		exec := h.current()
		report, err := exec.Publish(ctx, args[0], payload)
		if err != nil {
			return err
		}

		out := publishOutput{
			EventID:          report.EventID,
			Topic:            report.Topic,
			Delivered:        report.DeliveredCount,
			CascadeDelivered: report.CascadeDelivered,
			Stats:            exec.Stats(),
		}
		for _, de := range report.Errors {
			out.Errors = append(out.Errors, de.Error())
		}
		return writeFormatted(cmd.OutOrStdout(), format, out)
	})
}
