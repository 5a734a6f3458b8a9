package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/client"
	"github.com/alfredjeanlab/specs/internal/model"
)

func addRowFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("row", "r", nil, "row as attribute[:field]=value (repeatable)")
	cmd.Flags().String("rows-file", "", "JSON array of rows to submit (- for stdin)")
}

func rowsFromFlags(cmd *cobra.Command) ([]model.Row, error) {
	flags, _ := cmd.Flags().GetStringArray("row")
	file, _ := cmd.Flags().GetString("rows-file")
	return collectRows(flags, file, cmd.InOrStdin())
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [<type> <id>]",
	Short: "Show the effective attribute values of a record or specification",
	Long: `Resolve the effective attribute values of a record.

With only --spec, the specification's own attribute definitions are listed
without values. With a record, every applicable specification contributes
its attributes; --spec narrows the result to one specification.`,
	GroupID: "values",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		specID, _ := cmd.Flags().GetString("spec")
		req := &client.ResolveRequest{SpecificationID: specID}
		if len(args) == 2 {
			req.ReferenceType, req.ReferenceID = args[0], args[1]
		} else if specID == "" {
			return fmt.Errorf("either a record or --spec is required")
		}

		res, err := syncClient.Resolve(context.Background(), req)
		if err != nil {
			return fmt.Errorf("resolving: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printResolution(cmd.OutOrStdout(), res)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <type> <id>",
	Short: "Write attribute values for a record",
	Long: `Apply a row set to a record under one specification.

Rows are all-or-nothing: if any row is rejected nothing is written. An empty
value deletes a free-form attribute or clears a bound field. Attributes not
submitted are left untouched.`,
	GroupID: "values",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		specID, _ := cmd.Flags().GetString("spec")
		if specID == "" {
			return fmt.Errorf("--spec is required")
		}
		rows, err := rowsFromFlags(cmd)
		if err != nil {
			return err
		}

		result, err := syncClient.Apply(context.Background(), &client.ApplyRequest{
			SpecificationID: specID,
			ReferenceType:   args[0],
			ReferenceID:     args[1],
			Rows:            rows,
		})
		if err != nil {
			return fmt.Errorf("applying: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d values written\n", result.Written)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Check a row set for duplicate attributes without writing",
	GroupID: "values",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := rowsFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := syncClient.Validate(context.Background(), rows); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]bool{"valid": true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "valid")
		return nil
	},
}

var attributesCmd = &cobra.Command{
	Use:     "attributes <type>",
	Short:   "List free-form attribute names in use for a record type",
	GroupID: "values",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := rowsFromFlags(cmd)
		if err != nil {
			return err
		}
		names, err := syncClient.ListAttributes(context.Background(), args[0], rows)
		if err != nil {
			return fmt.Errorf("listing attributes: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), names)
		}
		printLines(cmd.OutOrStdout(), names)
		return nil
	},
}

var fieldsCmd = &cobra.Command{
	Use:     "fields <type>",
	Short:   "List the fields of a record type that attributes can bind to",
	GroupID: "values",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := syncClient.ResolveFields(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("resolving fields: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), fields)
		}
		printLines(cmd.OutOrStdout(), fields)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringP("spec", "s", "", "specification ID")

	applyCmd.Flags().StringP("spec", "s", "", "specification ID (required)")
	addRowFlags(applyCmd)

	addRowFlags(validateCmd)
	addRowFlags(attributesCmd)
}
