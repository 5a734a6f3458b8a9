package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/ui"
)

type healthReport struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	LatencyMS int64  `json:"latency_ms"`
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the specs service is reachable",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		start := time.Now()
		status, err := specsClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		report := healthReport{Status: status, Transport: transport, LatencyMS: time.Since(start).Milliseconds()}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			label := ui.RenderAccent(status)
			if status != "ok" {
				label = ui.RenderError(status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", label, ui.RenderMuted(fmt.Sprintf("(%s, %dms)", report.Transport, report.LatencyMS)))
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().Duration("timeout", 5*time.Second, "give up after this long")
}
