package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/specs/internal/model"
)

const specificationColumns = `id, title, applies_to_type, applies_to_scope, created_at, updated_at`

const attributeColumns = `specification_id, attribute_name, bound_field, numeric_values, date_values, position`

const valueColumns = `id, specification_id, reference_type, reference_id, attribute,
	bound_field, value, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scannable interface {
	Scan(dest ...any) error
}

// now is the timestamp source for written rows. SQLite has no NOW() with
// sub-second precision, so timestamps are stamped here.
var now = func() time.Time { return time.Now().UTC() }

// --- Record types ---

func queryPutRecordType(ctx context.Context, db executor, rt *model.RecordType) error {
	defs := rt.Fields
	if defs == nil {
		defs = []model.FieldDef{}
	}
	fields, err := json.Marshal(defs)
	if err != nil {
		return fmt.Errorf("marshal field defs: %w", err)
	}
	ts := now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO record_types (name, fields, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		rt.Name, string(fields), ts,
	); err != nil {
		return err
	}
	rt.UpdatedAt = ts
	return nil
}

func scanRecordType(row scannable) (*model.RecordType, error) {
	var rt model.RecordType
	var fields string
	if err := row.Scan(&rt.Name, &fields, &rt.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &rt.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", rt.Name, err)
	}
	return &rt, nil
}

func queryGetRecordType(ctx context.Context, db executor, name string) (*model.RecordType, error) {
	return scanRecordType(db.QueryRowContext(ctx,
		`SELECT name, fields, updated_at FROM record_types WHERE name = ?`, name))
}

func queryListRecordTypes(ctx context.Context, db executor) ([]*model.RecordType, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, fields, updated_at FROM record_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*model.RecordType
	for rows.Next() {
		rt, err := scanRecordType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}

// --- Records ---

func queryPutRecord(ctx context.Context, db executor, r *model.Record) error {
	values := r.Fields
	if values == nil {
		values = map[string]any{}
	}
	fields, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}
	ts := now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO records (type, id, fields, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		r.Type, r.ID, string(fields), ts,
	); err != nil {
		return err
	}
	r.UpdatedAt = ts
	return nil
}

func scanRecord(row scannable) (*model.Record, error) {
	var r model.Record
	var fields string
	if err := row.Scan(&r.Type, &r.ID, &fields, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s/%s: %w", r.Type, r.ID, err)
	}
	return &r, nil
}

func queryGetRecord(ctx context.Context, db executor, recordType, id string) (*model.Record, error) {
	return scanRecord(db.QueryRowContext(ctx,
		`SELECT type, id, fields, updated_at FROM records WHERE type = ? AND id = ?`, recordType, id))
}

func queryListRecords(ctx context.Context, db executor, recordType string) ([]*model.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT type, id, fields, updated_at FROM records WHERE type = ? ORDER BY id`, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func queryDeleteRecord(ctx context.Context, db executor, recordType, id string) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM specification_values WHERE reference_type = ? AND reference_id = ?`, recordType, id,
	); err != nil {
		return fmt.Errorf("delete record values: %w", err)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM records WHERE type = ? AND id = ?`, recordType, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Specifications ---

func scanSpecification(row scannable) (*model.Specification, error) {
	var s model.Specification
	var scope sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &s.AppliesToType, &scope, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.AppliesToScope = scope.String
	return &s, nil
}

func queryCreateSpecification(ctx context.Context, db executor, s *model.Specification) error {
	ts := now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO specifications (`+specificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Title, s.AppliesToType, nullString(s.AppliesToScope), ts, ts,
	); err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = ts, ts
	return insertAttributes(ctx, db, s)
}

func insertAttributes(ctx context.Context, db executor, s *model.Specification) error {
	for i, a := range s.Attributes {
		a.SpecificationID = s.ID
		a.Position = i
		if _, err := db.ExecContext(ctx, `
			INSERT INTO specification_attributes (`+attributeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, a.Name, nullString(a.BoundField), a.NumericValues, a.DateValues, a.Position,
		); err != nil {
			return fmt.Errorf("insert attribute %q: %w", a.Name, err)
		}
	}
	return nil
}

func queryGetSpecification(ctx context.Context, db executor, id string) (*model.Specification, error) {
	s, err := scanSpecification(db.QueryRowContext(ctx,
		`SELECT `+specificationColumns+` FROM specifications WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := attachAttributes(ctx, db, []*model.Specification{s}); err != nil {
		return nil, err
	}
	return s, nil
}

func queryListSpecifications(ctx context.Context, db executor, filter model.SpecificationFilter) ([]*model.Specification, error) {
	var (
		whereClauses []string
		args         []any
	)
	if filter.AppliesToType != "" {
		whereClauses = append(whereClauses, "applies_to_type = ?")
		args = append(args, filter.AppliesToType)
	}
	if filter.AppliesToScope != "" {
		whereClauses = append(whereClauses, "applies_to_scope = ?")
		args = append(args, filter.AppliesToScope)
	}

	query := `SELECT ` + specificationColumns + ` FROM specifications`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list specifications: %w", err)
	}
	var specs []*model.Specification
	for rows.Next() {
		s, err := scanSpecification(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan specifications: %w", err)
		}
		specs = append(specs, s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := attachAttributes(ctx, db, specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// attachAttributes loads the attribute rows of all given specifications in one
// query and attaches them in position order.
func attachAttributes(ctx context.Context, db executor, specs []*model.Specification) error {
	if len(specs) == 0 {
		return nil
	}
	byID := make(map[string]*model.Specification, len(specs))
	args := make([]any, len(specs))
	for i, s := range specs {
		byID[s.ID] = s
		args[i] = s.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(specs)), ", ")

	rows, err := db.QueryContext(ctx, `
		SELECT `+attributeColumns+`
		FROM specification_attributes
		WHERE specification_id IN (`+placeholders+`)
		ORDER BY specification_id, position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("get attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attribute
		var field sql.NullString
		if err := rows.Scan(&a.SpecificationID, &a.Name, &field, &a.NumericValues, &a.DateValues, &a.Position); err != nil {
			return fmt.Errorf("scan attributes: %w", err)
		}
		a.BoundField = field.String
		if s, ok := byID[a.SpecificationID]; ok {
			s.Attributes = append(s.Attributes, &a)
		}
	}
	return rows.Err()
}

func queryUpdateSpecification(ctx context.Context, db executor, s *model.Specification) error {
	ts := now()
	res, err := db.ExecContext(ctx, `
		UPDATE specifications SET title = ?, applies_to_type = ?, applies_to_scope = ?, updated_at = ?
		WHERE id = ?`,
		s.Title, s.AppliesToType, nullString(s.AppliesToScope), ts, s.ID,
	)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	if err := db.QueryRowContext(ctx, `SELECT created_at FROM specifications WHERE id = ?`, s.ID).Scan(&s.CreatedAt); err != nil {
		return err
	}
	s.UpdatedAt = ts

	if _, err := db.ExecContext(ctx, `DELETE FROM specification_attributes WHERE specification_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear attributes: %w", err)
	}
	return insertAttributes(ctx, db, s)
}

func queryDeleteSpecification(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM specifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Values ---

func scanValues(rows *sql.Rows) ([]*model.Value, error) {
	var values []*model.Value
	for rows.Next() {
		var v model.Value
		var field sql.NullString
		if err := rows.Scan(
			&v.ID, &v.SpecificationID, &v.ReferenceType, &v.ReferenceID, &v.Attribute,
			&field, &v.Value, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		v.BoundField = field.String
		values = append(values, &v)
	}
	return values, rows.Err()
}

func queryGetValues(ctx context.Context, db executor, specID, refType, refID string) ([]*model.Value, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+valueColumns+`
		FROM specification_values
		WHERE specification_id = ? AND reference_type = ? AND reference_id = ?
		ORDER BY attribute`,
		specID, refType, refID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanValues(rows)
}

func queryListValues(ctx context.Context, db executor, filter model.ValueFilter) ([]*model.Value, error) {
	var (
		whereClauses []string
		args         []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		whereClauses = append(whereClauses, col+" = ?")
		args = append(args, val)
	}
	add("specification_id", filter.SpecificationID)
	add("reference_type", filter.ReferenceType)
	add("reference_id", filter.ReferenceID)
	if n := len(filter.Attributes); n > 0 {
		whereClauses = append(whereClauses, "attribute IN (?"+strings.Repeat(", ?", n-1)+")")
		for _, a := range filter.Attributes {
			args = append(args, a)
		}
	}

	query := `SELECT ` + valueColumns + ` FROM specification_values`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}
	defer rows.Close()
	return scanValues(rows)
}

func queryCreateValue(ctx context.Context, db executor, v *model.Value) error {
	ts := now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO specification_values (`+valueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SpecificationID, v.ReferenceType, v.ReferenceID, v.Attribute,
		nullString(v.BoundField), v.Value, ts, ts,
	); err != nil {
		return err
	}
	v.CreatedAt, v.UpdatedAt = ts, ts
	return nil
}

func queryUpdateValue(ctx context.Context, db executor, v *model.Value) error {
	ts := now()
	res, err := db.ExecContext(ctx, `
		UPDATE specification_values SET bound_field = ?, value = ?, updated_at = ?
		WHERE id = ?`,
		nullString(v.BoundField), v.Value, ts, v.ID,
	)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	v.UpdatedAt = ts
	return nil
}

func queryDeleteValue(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM specification_values WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Catalog ---

func queryListFreeFormAttributes(ctx context.Context, db executor, recordType string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT v.attribute
		FROM specification_values v
		JOIN specifications s ON s.id = v.specification_id
		WHERE v.bound_field IS NULL AND (?1 = '' OR s.applies_to_type = ?1)
		UNION
		SELECT a.attribute_name
		FROM specification_attributes a
		JOIN specifications s ON s.id = a.specification_id
		WHERE a.bound_field IS NULL AND (?1 = '' OR s.applies_to_type = ?1)
		ORDER BY 1`,
		recordType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// expectAffected maps a zero-row write to sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
