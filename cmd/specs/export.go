package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	specsync "github.com/alfredjeanlab/specs/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export specifications and stored values as JSONL",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localStore == nil {
			return fmt.Errorf("export reads the database directly; use --transport local")
		}
		out, _ := cmd.Flags().GetString("output")

		w := cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := specsync.ExportJSONL(context.Background(), localStore, w); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}
