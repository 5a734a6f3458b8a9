package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/specs/internal/model"
)

// resetFlags restores every flag in the command tree to its default so
// values from one Execute do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the CLI against the SQLite database at db and returns
// everything it printed.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--transport", "local", "--db", "sqlite://" + db}, args...))
	err := rootCmd.Execute()
	closeClients()
	return out.String(), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, db, args...)
	if err != nil {
		t.Fatalf("specs %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func rowByAttribute(rows []model.Row, name string) *model.Row {
	for i := range rows {
		if rows[i].Attribute == name {
			return &rows[i]
		}
	}
	return nil
}

func TestCLI_LocalWorkflow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "specs.db")

	mustRun(t, db, "type", "put", "Pie", "--field", "color", "--field", "size", "--field", "layers:Int", "--field", "crusts:Table:Crust")
	mustRun(t, db, "record", "put", "Pie", "plum", "--set", "color=Purple", "--set", "size=Medium", "--set", "layers=2")

	out := mustRun(t, db, "fields", "Pie")
	if !strings.Contains(out, "color") || strings.Contains(out, "crusts") {
		t.Errorf("fields output = %q", out)
	}

	out = mustRun(t, db, "spec", "create", "--id", "Pies", "--type", "Pie",
		"--attr", "Color=color", "--attr", "Grade", "--attr", "Weight:numeric")
	if !strings.Contains(out, "created Pies (Pie)") {
		t.Errorf("spec create output = %q", out)
	}

	out = mustRun(t, db, "apply", "Pie", "plum", "--spec", "Pies", "-r", "Color:color=Plum", "-r", "Grade=A")
	if !strings.Contains(out, "2 values written") {
		t.Errorf("apply output = %q", out)
	}

	out = mustRun(t, db, "--json", "resolve", "Pie", "plum")
	var res model.Resolution
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("resolve output is not JSON: %v\n%s", err, out)
	}
	if res.Mode != model.ModeRecord {
		t.Errorf("mode = %q", res.Mode)
	}
	if r := rowByAttribute(res.Rows, "Color"); r == nil || r.Text() != "Plum" || r.Field != "color" {
		t.Errorf("Color row = %+v", r)
	}
	if r := rowByAttribute(res.Rows, "Grade"); r == nil || r.Text() != "A" {
		t.Errorf("Grade row = %+v", r)
	}
	if r := rowByAttribute(res.Rows, "Weight"); r == nil || r.Text() != "" {
		t.Errorf("Weight row = %+v", r)
	}

	// A rejected row leaves every value untouched.
	if _, err := runCLI(t, db, "apply", "Pie", "plum", "--spec", "Pies", "-r", "Grade=B", "-r", "Weight=heavy"); err == nil {
		t.Fatal("expected non-numeric Weight to be rejected")
	}
	out = mustRun(t, db, "--json", "resolve", "Pie", "plum", "--spec", "Pies")
	res = model.Resolution{}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("resolve output is not JSON: %v", err)
	}
	if r := rowByAttribute(res.Rows, "Grade"); r == nil || r.Text() != "A" {
		t.Errorf("Grade after rejected apply = %+v", r)
	}

	if out := mustRun(t, db, "attributes", "Pie"); strings.TrimSpace(out) != "Grade\nWeight" {
		t.Errorf("attributes output = %q", out)
	}

	out = mustRun(t, db, "resolve", "--spec", "Pies")
	if !strings.Contains(out, "(definition)") {
		t.Errorf("definition resolve output = %q", out)
	}

	out = mustRun(t, db, "spec", "list", "--type", "Pie")
	if !strings.Contains(out, "Pies") || !strings.Contains(out, "1 specifications") {
		t.Errorf("spec list output = %q", out)
	}

	out = mustRun(t, db, "generate", "Pies", "-r", "Grade=B")
	if !strings.Contains(out, "across 1 records") {
		t.Errorf("generate output = %q", out)
	}

	out = mustRun(t, db, "export")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(lines[0], `"type":"header"`) {
		t.Errorf("first export line = %q", lines[0])
	}
	if !strings.Contains(out, `"id":"Pies"`) {
		t.Errorf("export missing specification:\n%s", out)
	}
}

func TestCLI_FacetedSearch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "specs.db")

	mustRun(t, db, "type", "put", "Pie", "--field", "color")
	mustRun(t, db, "record", "put", "Pie", "plum", "--set", "color=Purple")
	mustRun(t, db, "record", "put", "Pie", "apple", "--set", "color=Green")
	mustRun(t, db, "spec", "create", "--id", "Pies", "--type", "Pie", "--attr", "Color=color", "--attr", "Weight:numeric")
	mustRun(t, db, "apply", "Pie", "plum", "--spec", "Pies", "-r", "Weight=12")
	mustRun(t, db, "apply", "Pie", "apple", "--spec", "Pies", "-r", "Weight=4.5")

	out := mustRun(t, db, "facets", "Pie")
	if !strings.Contains(out, "Green, Purple") || !strings.Contains(out, "4.5 .. 12") {
		t.Errorf("facets output = %q", out)
	}

	out = mustRun(t, db, "--json", "search", "Pie", "--range", "Weight=10..")
	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("search output is not JSON: %v\n%s", err, out)
	}
	if len(ids) != 1 || ids[0] != "plum" {
		t.Errorf("search = %v, want [plum]", ids)
	}

	out = mustRun(t, db, "search", "Pie", "--value", "Color=Green", "--range", "Weight=10..")
	if !strings.Contains(out, "2 records") {
		t.Errorf("union search output = %q", out)
	}

	if _, err := runCLI(t, db, "search", "Pie"); err == nil {
		t.Error("expected search without filters to fail")
	}
}

func TestCLI_Validate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "specs.db")

	if out := mustRun(t, db, "validate", "-r", "Grade=A", "-r", "Weight=3"); strings.TrimSpace(out) != "valid" {
		t.Errorf("validate output = %q", out)
	}

	_, err := runCLI(t, db, "validate", "-r", "Grade=A", "-r", "Grade=B")
	if !model.IsDuplicateAttribute(err) {
		t.Fatalf("expected duplicate attribute error, got %v", err)
	}
}

func TestCLI_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "specs.db")

	if _, err := runCLI(t, db, "apply", "Item", "pie", "-r", "Grade=A"); err == nil || !strings.Contains(err.Error(), "--spec is required") {
		t.Errorf("apply without --spec: %v", err)
	}
	if _, err := runCLI(t, db, "resolve"); err == nil {
		t.Error("resolve without a record or --spec should fail")
	}
	if _, err := runCLI(t, db, "fields", "Widget"); !model.IsUnknownType(err) {
		t.Errorf("fields for unknown type: %v", err)
	}
	if _, err := runCLI(t, db, "apply", "Item", "pie", "--spec", "Items", "-r", "bogus"); err == nil {
		t.Error("malformed row should fail")
	}
}

func TestCLI_ExportRequiresLocal(t *testing.T) {
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--transport", "http", "--http-url", "http://127.0.0.1:1", "export"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	err := rootCmd.Execute()
	closeClients()
	if err == nil || !strings.Contains(err.Error(), "--transport local") {
		t.Fatalf("export over http: %v", err)
	}
}

func TestCLI_Health(t *testing.T) {
	db := filepath.Join(t.TempDir(), "specs.db")

	var report healthReport
	if err := json.Unmarshal([]byte(mustRun(t, db, "--json", "health")), &report); err != nil {
		t.Fatalf("health --json: %v", err)
	}
	if report.Status != "ok" || report.Transport != "local" {
		t.Fatalf("unexpected report %+v", report)
	}
	if out := mustRun(t, db, "health"); !strings.Contains(out, "ok") {
		t.Fatalf("health output = %q", out)
	}
}
