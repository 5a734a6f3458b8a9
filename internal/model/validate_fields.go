package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Accepted text layouts for date and datetime field values.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// ValidateRecordFields checks the live field values of r against the schema
// rt. It rejects unknown keys and values on structural fields, and checks
// value fields by type. Null values are always accepted. Returns a
// *ValidationError on failure, nil on success.
func ValidateRecordFields(r *Record, rt *RecordType) error {
	defsByName := make(map[string]*FieldDef, len(rt.Fields))
	for i := range rt.Fields {
		if rt.Fields[i].Name != "" {
			defsByName[rt.Fields[i].Name] = &rt.Fields[i]
		}
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ve ValidationError
	for _, key := range keys {
		val := r.Fields[key]
		d, ok := defsByName[key]
		switch {
		case !ok && key == IdentifierField:
			// The identifier may be echoed back on any type.
		case !ok:
			ve.Errors = append(ve.Errors, FieldError{Field: key, Message: "unknown field"})
		case val == nil:
		case d.Type.IsStructural():
			ve.Errors = append(ve.Errors, FieldError{Field: key, Message: fmt.Sprintf("%s fields cannot hold a value", d.Type)})
		default:
			if err := validateFieldValue(*d, val); err != nil {
				ve.Errors = append(ve.Errors, FieldError{Field: key, Message: err.Error()})
			}
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateFieldValue(d FieldDef, val any) error {
	switch d.Type {
	case FieldTypeInt:
		n, ok := number(val)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("must be an integer")
		}
	case FieldTypeFloat, FieldTypeCurrency, FieldTypePercent:
		if _, ok := number(val); !ok {
			return fmt.Errorf("must be a number")
		}
	case FieldTypeCheck:
		switch v := val.(type) {
		case bool:
		case float64:
			if v != 0 && v != 1 {
				return fmt.Errorf("must be 0 or 1")
			}
		default:
			return fmt.Errorf("must be a boolean")
		}
	case FieldTypeDate:
		if !parses(val, DateLayout) {
			return fmt.Errorf("must be a date (YYYY-MM-DD)")
		}
	case FieldTypeDatetime:
		if !parses(val, DatetimeLayout, time.RFC3339) {
			return fmt.Errorf("must be a datetime (YYYY-MM-DD HH:MM:SS)")
		}
	case FieldTypeSelect:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if options := selectOptions(d.Options); s != "" && len(options) > 0 && !contains(options, s) {
			return fmt.Errorf("must be one of %v", options)
		}
	default:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	}
	return nil
}

// number accepts a JSON number or its text form.
func number(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

func parses(val any, layouts ...string) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	if s == "" {
		return true
	}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// selectOptions splits newline-separated Select choices, dropping blanks.
func selectOptions(options string) []string {
	var out []string
	for _, o := range strings.Split(options, "\n") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
