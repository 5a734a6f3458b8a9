package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/alfredjeanlab/specs/internal/model"
)

// parseRow parses "attribute=value" or "attribute:field=value" into a row.
// The value may be empty and may itself contain '='.
func parseRow(s string) (model.Row, error) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return model.Row{}, fmt.Errorf("invalid row %q (want attribute[:field]=value)", s)
	}
	key, value := s[:i], s[i+1:]
	attribute, field := key, ""
	if j := strings.LastIndexByte(key, ':'); j >= 0 {
		attribute, field = key[:j], key[j+1:]
	}
	if strings.TrimSpace(attribute) == "" {
		return model.Row{}, fmt.Errorf("invalid row %q: attribute is empty", s)
	}
	return model.NewRow(attribute, field, value), nil
}

// collectRows builds the submitted row set from --row flags followed by the
// rows of --rows-file ("-" reads stdin).
func collectRows(flags []string, file string, stdin io.Reader) ([]model.Row, error) {
	var rows []model.Row
	for _, f := range flags {
		r, err := parseRow(f)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	if file == "" {
		return rows, nil
	}

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	var fromFile []model.Row
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parsing rows from %s: %w", file, err)
	}
	return append(rows, fromFile...), nil
}

// parseAttribute parses an attribute definition of the form
// "Name[=field][:numeric|:date]".
func parseAttribute(s string) (*model.Attribute, error) {
	a := &model.Attribute{}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		switch s[i+1:] {
		case "numeric":
			a.NumericValues = true
		case "date":
			a.DateValues = true
		default:
			return nil, fmt.Errorf("invalid attribute %q: unknown option %q", s, s[i+1:])
		}
		s = s[:i]
	}
	name, field, _ := strings.Cut(s, "=")
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("invalid attribute %q: name is empty", s)
	}
	a.Name, a.BoundField = name, field
	return a, nil
}

// parseFieldDef parses a record field definition "name[:Type[:Options]]".
// Type defaults to Data.
func parseFieldDef(s string) (model.FieldDef, error) {
	parts := strings.SplitN(s, ":", 3)
	d := model.FieldDef{Name: parts[0], Type: model.FieldTypeData}
	if d.Name == "" {
		return model.FieldDef{}, fmt.Errorf("invalid field %q: name is empty", s)
	}
	if len(parts) > 1 && parts[1] != "" {
		d.Type = model.FieldType(parts[1])
	}
	if len(parts) > 2 {
		d.Options = parts[2]
	}
	return d, nil
}

// parseFields converts "key=value" pairs into record field values. Values
// that look like JSON literals are decoded; anything else is kept as text.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := splitField(p)
		if !ok {
			return nil, fmt.Errorf("invalid field %q (want key=value)", p)
		}
		fields[k] = fieldValue(v)
	}
	return fields, nil
}

// splitField splits "key=value" into (key, value, true).
// Returns ("", "", false) if there is no '=' or key is empty.
func splitField(s string) (string, string, bool) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func fieldValue(v string) any {
	if len(v) == 0 {
		return v
	}
	literal := v == "true" || v == "false" || v == "null" ||
		v[0] == '{' || v[0] == '[' || v[0] == '"' ||
		v[0] == '-' || unicode.IsDigit(rune(v[0]))
	if !literal {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(v), &decoded); err != nil {
		return v
	}
	return decoded
}
