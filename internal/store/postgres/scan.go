package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/specs/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanSpecification scans a single row into a model.Specification.
// The row must contain columns in the order defined by specificationColumns.
func scanSpecification(row scannable) (*model.Specification, error) {
	var s model.Specification
	var scope sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &s.AppliesToType, &scope, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.AppliesToScope = scope.String
	return &s, nil
}

// scanSpecifications scans multiple rows into a slice of model.Specification pointers.
func scanSpecifications(rows *sql.Rows) ([]*model.Specification, error) {
	var specs []*model.Specification
	for rows.Next() {
		s, err := scanSpecification(rows)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

// scanAttributes scans rows in attributeColumns order.
func scanAttributes(rows *sql.Rows) ([]*model.Attribute, error) {
	var attrs []*model.Attribute
	for rows.Next() {
		var a model.Attribute
		var field sql.NullString
		if err := rows.Scan(&a.SpecificationID, &a.Name, &field, &a.NumericValues, &a.DateValues, &a.Position); err != nil {
			return nil, err
		}
		a.BoundField = field.String
		attrs = append(attrs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// scanValue scans a single row into a model.Value.
// The row must contain columns in the order defined by valueColumns.
func scanValue(row scannable) (*model.Value, error) {
	var v model.Value
	var field sql.NullString
	err := row.Scan(
		&v.ID,
		&v.SpecificationID,
		&v.ReferenceType,
		&v.ReferenceID,
		&v.Attribute,
		&field,
		&v.Value,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.BoundField = field.String
	return &v, nil
}

// scanValues scans multiple rows into a slice of model.Value pointers.
func scanValues(rows *sql.Rows) ([]*model.Value, error) {
	var values []*model.Value
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// scanRecordType scans a (name, fields, updated_at) row.
func scanRecordType(row scannable) (*model.RecordType, error) {
	var rt model.RecordType
	var fields []byte
	if err := row.Scan(&rt.Name, &fields, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rt.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rt.Name, err)
		}
	}
	return &rt, nil
}

// scanRecordTypes scans multiple rows into a slice of model.RecordType pointers.
func scanRecordTypes(rows *sql.Rows) ([]*model.RecordType, error) {
	var types []*model.RecordType
	for rows.Next() {
		rt, err := scanRecordType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return types, nil
}

// scanRecord scans a (type, id, fields, updated_at) row.
func scanRecord(row scannable) (*model.Record, error) {
	var r model.Record
	var fields []byte
	if err := row.Scan(&r.Type, &r.ID, &fields, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s/%s: %w", r.Type, r.ID, err)
		}
	}
	return &r, nil
}

// scanRecords scans multiple rows into a slice of model.Record pointers.
func scanRecords(rows *sql.Rows) ([]*model.Record, error) {
	var records []*model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// marshalFieldDefs encodes a record type schema for a JSONB column.
func marshalFieldDefs(defs []model.FieldDef) ([]byte, error) {
	if defs == nil {
		defs = []model.FieldDef{}
	}
	b, err := json.Marshal(defs)
	if err != nil {
		return nil, fmt.Errorf("marshal field defs: %w", err)
	}
	return b, nil
}

// marshalRecordFields encodes live record values for a JSONB column.
func marshalRecordFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal record fields: %w", err)
	}
	return b, nil
}
