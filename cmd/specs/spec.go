package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/model"
)

var specCmd = &cobra.Command{
	Use:     "spec",
	Short:   "Manage specifications",
	GroupID: "specs",
}

func attributesFromFlags(cmd *cobra.Command) ([]*model.Attribute, error) {
	defs, _ := cmd.Flags().GetStringArray("attr")
	attrs := make([]*model.Attribute, 0, len(defs))
	for _, d := range defs {
		a, err := parseAttribute(d)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

var specCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a specification",
	Long: `Create a specification for a record type.

Attributes are given as Name, Name=field to bind a record field, with an
optional :numeric or :date suffix restricting the values:

  specs spec create --type Item --attr Color=color --attr Weight:numeric`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		appliesTo, _ := cmd.Flags().GetString("type")
		scope, _ := cmd.Flags().GetString("scope")
		attrs, err := attributesFromFlags(cmd)
		if err != nil {
			return err
		}

		spec, err := specsClient.CreateSpecification(context.Background(), &model.Specification{
			ID:             id,
			AppliesToType:  appliesTo,
			AppliesToScope: scope,
			Attributes:     attrs,
		})
		if err != nil {
			return fmt.Errorf("creating specification: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), spec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", spec.ID, spec.Title)
		return nil
	},
}

var specUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace the attributes or scope of a specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		spec, err := specsClient.GetSpecification(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting specification: %w", err)
		}
		if cmd.Flags().Changed("type") {
			spec.AppliesToType, _ = cmd.Flags().GetString("type")
		}
		if cmd.Flags().Changed("scope") {
			spec.AppliesToScope, _ = cmd.Flags().GetString("scope")
		}
		if cmd.Flags().Changed("attr") {
			if spec.Attributes, err = attributesFromFlags(cmd); err != nil {
				return err
			}
		}

		spec, err = specsClient.UpdateSpecification(ctx, spec)
		if err != nil {
			return fmt.Errorf("updating specification: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), spec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s)\n", spec.ID, spec.Title)
		return nil
	},
}

var specShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a specification and its attributes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specsClient.GetSpecification(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting specification: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), spec)
		}
		printSpecification(cmd.OutOrStdout(), spec)
		return nil
	},
}

var specListCmd = &cobra.Command{
	Use:   "list",
	Short: "List specifications, most recently modified first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appliesTo, _ := cmd.Flags().GetString("type")
		scope, _ := cmd.Flags().GetString("scope")
		specs, err := specsClient.ListSpecifications(context.Background(), model.SpecificationFilter{
			AppliesToType:  appliesTo,
			AppliesToScope: scope,
		})
		if err != nil {
			return fmt.Errorf("listing specifications: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), specs)
		}
		printSpecificationList(cmd.OutOrStdout(), specs)
		return nil
	},
}

var specDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a specification and its stored values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := specsClient.DeleteSpecification(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting specification: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <spec-id>",
	Short: "Apply a row set to every record a specification covers",
	Long: `Apply the same row set to every record the specification applies to: the
scope record of a scoped specification, or every record of its type. All
records are written in one transaction.`,
	GroupID: "specs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := rowsFromFlags(cmd)
		if err != nil {
			return err
		}
		result, err := specsClient.Generate(context.Background(), args[0], rows)
		if err != nil {
			return fmt.Errorf("generating: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d values written across %d records\n", result.Written, len(result.References))
		return nil
	},
}

func init() {
	specCreateCmd.Flags().String("id", "", "specification ID (generated when empty)")
	specCreateCmd.Flags().StringP("type", "t", "", "record type the specification applies to (required)")
	specCreateCmd.Flags().String("scope", "", "restrict the specification to one record of the type")
	specCreateCmd.Flags().StringArrayP("attr", "a", nil, "attribute as Name[=field][:numeric|:date] (repeatable)")
	_ = specCreateCmd.MarkFlagRequired("type")

	specUpdateCmd.Flags().StringP("type", "t", "", "record type the specification applies to")
	specUpdateCmd.Flags().String("scope", "", "scope record (empty makes the specification a template)")
	specUpdateCmd.Flags().StringArrayP("attr", "a", nil, "replacement attribute list (repeatable)")

	specListCmd.Flags().StringP("type", "t", "", "filter by record type")
	specListCmd.Flags().String("scope", "", "filter by scope record")

	addRowFlags(generateCmd)

	specCmd.AddCommand(specCreateCmd)
	specCmd.AddCommand(specShowCmd)
	specCmd.AddCommand(specListCmd)
	specCmd.AddCommand(specUpdateCmd)
	specCmd.AddCommand(specDeleteCmd)
}
