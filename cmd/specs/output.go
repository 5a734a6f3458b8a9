package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/ui"
)

// maxValueWidth bounds value columns in tables.
const maxValueWidth = 60

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printResolution(w io.Writer, res *model.Resolution) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tFIELD\tVALUE\tSPECIFICATION")
	for _, r := range res.Rows {
		value := ui.Truncate(r.Text(), maxValueWidth)
		if r.Value == nil {
			value = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Attribute, r.Field, value, r.Specification)
	}
	tw.Flush()
	for _, s := range res.Shadowed {
		fmt.Fprintln(w, ui.RenderWarn(fmt.Sprintf("shadowed: %s from %s (hidden by %s)", s.Attribute, s.Specification, s.ShadowedBy)))
	}
	fmt.Fprintf(w, "\n%d rows (%s)\n", len(res.Rows), res.Mode)
}

func printSpecification(w io.Writer, spec *model.Specification) {
	fmt.Fprintf(w, "ID:          %s\n", spec.ID)
	fmt.Fprintf(w, "Title:       %s\n", spec.Title)
	fmt.Fprintf(w, "Applies To:  %s\n", spec.AppliesToType)
	if spec.AppliesToScope != "" {
		fmt.Fprintf(w, "Scope:       %s\n", spec.AppliesToScope)
	}
	if !spec.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", spec.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(spec.Attributes) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tBOUND FIELD\tVALUES")
	for _, a := range spec.Attributes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.BoundField, attributeKind(a))
	}
	tw.Flush()
}

func attributeKind(a *model.Attribute) string {
	switch {
	case a.NumericValues:
		return "numeric"
	case a.DateValues:
		return "date"
	}
	return "text"
}

func printSpecificationList(w io.Writer, specs []*model.Specification) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tSCOPE\tATTRIBUTES")
	for _, s := range specs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.ID, ui.Truncate(s.Title, 40), s.AppliesToType, s.AppliesToScope, len(s.Attributes))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d specifications\n", len(specs))
}

func printRecordType(w io.Writer, rt *model.RecordType) {
	fmt.Fprintf(w, "%s\n", rt.Name)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE\tOPTIONS")
	for _, f := range rt.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Type, f.Options)
	}
	tw.Flush()
}

func printRecord(w io.Writer, r *model.Record) {
	fmt.Fprintf(w, "%s %s\n", r.Type, r.ID)
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%s\n", k, ui.Truncate(r.FieldText(k), maxValueWidth))
	}
	tw.Flush()
}

func printLines(w io.Writer, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
