package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/model"
)

var typeCmd = &cobra.Command{
	Use:     "type",
	Short:   "Manage record type schemas",
	GroupID: "records",
}

var typePutCmd = &cobra.Command{
	Use:   "put <name>",
	Short: "Create or replace a record type schema",
	Long: `Create or replace a record type schema. Fields are given as
name[:Type[:Options]]; Type defaults to Data:

  specs type put Item --field color --field weight:Float --field uoms:Table`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, _ := cmd.Flags().GetStringArray("field")
		rt := &model.RecordType{Name: args[0]}
		for _, d := range defs {
			f, err := parseFieldDef(d)
			if err != nil {
				return err
			}
			rt.Fields = append(rt.Fields, f)
		}

		rt, err := specsClient.PutRecordType(context.Background(), rt)
		if err != nil {
			return fmt.Errorf("saving record type: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rt)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d fields)\n", rt.Name, len(rt.Fields))
		return nil
	},
}

var typeShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a record type schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := specsClient.GetRecordType(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting record type: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rt)
		}
		printRecordType(cmd.OutOrStdout(), rt)
		return nil
	},
}

var typeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List record types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := specsClient.ListRecordTypes(context.Background())
		if err != nil {
			return fmt.Errorf("listing record types: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), types)
		}
		names := make([]string, len(types))
		for i, rt := range types {
			names[i] = rt.Name
		}
		printLines(cmd.OutOrStdout(), names)
		return nil
	},
}

var recordCmd = &cobra.Command{
	Use:     "record",
	Short:   "Manage host records",
	GroupID: "records",
}

var recordPutCmd = &cobra.Command{
	Use:   "put <type> <id>",
	Short: "Create or replace a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("set")
		fields, err := parseFields(pairs)
		if err != nil {
			return err
		}

		r, err := specsClient.PutRecord(context.Background(), &model.Record{Type: args[0], ID: args[1], Fields: fields})
		if err != nil {
			return fmt.Errorf("saving record: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s %s\n", r.Type, r.ID)
		return nil
	},
}

var recordShowCmd = &cobra.Command{
	Use:   "show <type> <id>",
	Short: "Show a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := specsClient.GetRecord(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting record: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		printRecord(cmd.OutOrStdout(), r)
		return nil
	},
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete a record and its stored values",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := specsClient.DeleteRecord(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("deleting record: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	typePutCmd.Flags().StringArrayP("field", "f", nil, "field as name[:Type[:Options]] (repeatable)")

	typeCmd.AddCommand(typePutCmd)
	typeCmd.AddCommand(typeShowCmd)
	typeCmd.AddCommand(typeListCmd)

	recordPutCmd.Flags().StringArray("set", nil, "field value as key=value (repeatable)")

	recordCmd.AddCommand(recordPutCmd)
	recordCmd.AddCommand(recordShowCmd)
	recordCmd.AddCommand(recordDeleteCmd)
}
