package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// FieldType identifies the form-builder type of a record field.
type FieldType string

// Value field types.
const (
	FieldTypeData      FieldType = "Data"
	FieldTypeInt       FieldType = "Int"
	FieldTypeFloat     FieldType = "Float"
	FieldTypeCurrency  FieldType = "Currency"
	FieldTypePercent   FieldType = "Percent"
	FieldTypeCheck     FieldType = "Check"
	FieldTypeDate      FieldType = "Date"
	FieldTypeDatetime  FieldType = "Datetime"
	FieldTypeSelect    FieldType = "Select"
	FieldTypeLink      FieldType = "Link"
	FieldTypeText      FieldType = "Text"
	FieldTypeSmallText FieldType = "Small Text"
	FieldTypeLongText  FieldType = "Long Text"
	FieldTypeColor     FieldType = "Color"
)

// Structural field types carry layout or child rows and never hold a value.
const (
	FieldTypeSectionBreak     FieldType = "Section Break"
	FieldTypeColumnBreak      FieldType = "Column Break"
	FieldTypeTabBreak         FieldType = "Tab Break"
	FieldTypeHTML             FieldType = "HTML"
	FieldTypeHeading          FieldType = "Heading"
	FieldTypeButton           FieldType = "Button"
	FieldTypeImage            FieldType = "Image"
	FieldTypeFold             FieldType = "Fold"
	FieldTypeTable            FieldType = "Table"
	FieldTypeTableMultiSelect FieldType = "Table MultiSelect"
)

// IdentifierField is the reserved name of a record's identifier.
const IdentifierField = "name"

// IsStructural reports whether fields of this type hold no bindable value.
func (t FieldType) IsStructural() bool {
	switch t {
	case FieldTypeSectionBreak, FieldTypeColumnBreak, FieldTypeTabBreak,
		FieldTypeHTML, FieldTypeHeading, FieldTypeButton, FieldTypeImage,
		FieldTypeFold, FieldTypeTable, FieldTypeTableMultiSelect:
		return true
	}
	return false
}

// FieldDef describes a single field on a record type.
type FieldDef struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Label   string    `json:"label,omitempty"`
	Options string    `json:"options,omitempty"` // link target or select choices
}

// RecordType is the schema of a record type.
type RecordType struct {
	Name      string     `json:"name"`
	Fields    []FieldDef `json:"fields"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Record is a host record instance with its live field values.
type Record struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// FieldText renders the live value of a field as text. Missing and null
// values render as the empty string.
func (r *Record) FieldText(field string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return FormatFieldValue(r.Fields[field])
}

// FormatFieldValue renders a decoded JSON field value as text.
func FormatFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
