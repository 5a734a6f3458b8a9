package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/ui"
)

var facetsCmd = &cobra.Command{
	Use:     "facets <type>",
	Short:   "Summarize the attribute values carried by records of a type",
	GroupID: "values",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		facets, err := specsClient.Facets(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("listing facets: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), facets)
		}
		printFacets(cmd.OutOrStdout(), facets)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <type>",
	Short: "Find records by attribute values or ranges",
	Long: `Find records of a type whose effective attribute values match.

A record matches when any filter matches it. --value takes a comma-separated
list of accepted values; --range takes min..max with either side open and
applies to numeric and date attributes.

  specs search Item --value Color=Purple,Green --range Weight=10..`,
	GroupID: "values",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, _ := cmd.Flags().GetStringArray("value")
		ranges, _ := cmd.Flags().GetStringArray("range")
		filters, err := parseFacetFilters(values, ranges)
		if err != nil {
			return err
		}
		if len(filters) == 0 {
			return fmt.Errorf("at least one --value or --range is required")
		}
		ids, err := specsClient.FilterRecords(context.Background(), args[0], filters)
		if err != nil {
			return fmt.Errorf("searching %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ids)
		}
		printLines(cmd.OutOrStdout(), ids)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d records\n", len(ids))
		return nil
	},
}

// parseFacetFilters builds one filter per attribute from "attr=v1,v2" value
// flags and "attr=min..max" range flags, in first-seen attribute order.
func parseFacetFilters(values, ranges []string) ([]model.FacetFilter, error) {
	var filters []model.FacetFilter
	index := make(map[string]int)
	filter := func(attr string) *model.FacetFilter {
		i, ok := index[attr]
		if !ok {
			i = len(filters)
			index[attr] = i
			filters = append(filters, model.FacetFilter{Attribute: attr})
		}
		return &filters[i]
	}

	for _, v := range values {
		attr, list, ok := splitField(v)
		if !ok {
			return nil, fmt.Errorf("invalid value filter %q (want attribute=v1,v2)", v)
		}
		f := filter(attr)
		for _, item := range strings.Split(list, ",") {
			if item = strings.TrimSpace(item); item != "" {
				f.Values = append(f.Values, item)
			}
		}
	}
	for _, r := range ranges {
		attr, bounds, ok := splitField(r)
		lo, hi, found := strings.Cut(bounds, "..")
		if !ok || !found {
			return nil, fmt.Errorf("invalid range filter %q (want attribute=min..max)", r)
		}
		f := filter(attr)
		f.Min, f.Max = strings.TrimSpace(lo), strings.TrimSpace(hi)
	}
	return filters, nil
}

func printFacets(w io.Writer, facets []model.Facet) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tFIELD\tKIND\tVALUES")
	for _, f := range facets {
		summary := strings.Join(f.Values, ", ")
		if f.Kind != model.FacetValues && f.Min != "" {
			summary = f.Min + " .. " + f.Max
		}
		if summary == "" {
			summary = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Attribute, f.Field, f.Kind, ui.Truncate(summary, maxValueWidth))
	}
	tw.Flush()
}

func init() {
	searchCmd.Flags().StringArray("value", nil, "accepted values as attribute=v1,v2 (repeatable)")
	searchCmd.Flags().StringArray("range", nil, "numeric or date range as attribute=min..max (repeatable)")
}
