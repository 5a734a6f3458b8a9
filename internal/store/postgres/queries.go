package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/specs/internal/model"
)

// specificationColumns is the column list used for SELECT statements on the specifications table.
const specificationColumns = `id, title, applies_to_type, applies_to_scope, created_at, updated_at`

// attributeColumns is the column list used for SELECT statements on the specification_attributes table.
const attributeColumns = `specification_id, attribute_name, bound_field, numeric_values, date_values, position`

// valueColumns is the column list used for SELECT statements on the specification_values table.
const valueColumns = `id, specification_id, reference_type, reference_id, attribute,
	bound_field, value, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Record types ---

func queryPutRecordType(ctx context.Context, db executor, rt *model.RecordType) error {
	fields, err := marshalFieldDefs(rt.Fields)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO record_types (name, fields)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET fields = $2, updated_at = NOW()
		RETURNING updated_at`,
		rt.Name, fields,
	).Scan(&rt.UpdatedAt)
}

func queryGetRecordType(ctx context.Context, db executor, name string) (*model.RecordType, error) {
	row := db.QueryRowContext(ctx, `
		SELECT name, fields, updated_at
		FROM record_types WHERE name = $1`, name)
	return scanRecordType(row)
}

func queryListRecordTypes(ctx context.Context, db executor) ([]*model.RecordType, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, fields, updated_at
		FROM record_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecordTypes(rows)
}

// --- Records ---

func queryPutRecord(ctx context.Context, db executor, r *model.Record) error {
	fields, err := marshalRecordFields(r.Fields)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO records (type, id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (type, id) DO UPDATE SET fields = $3, updated_at = NOW()
		RETURNING updated_at`,
		r.Type, r.ID, fields,
	).Scan(&r.UpdatedAt)
}

func queryGetRecord(ctx context.Context, db executor, recordType, id string) (*model.Record, error) {
	row := db.QueryRowContext(ctx, `
		SELECT type, id, fields, updated_at
		FROM records WHERE type = $1 AND id = $2`, recordType, id)
	return scanRecord(row)
}

func queryListRecords(ctx context.Context, db executor, recordType string) ([]*model.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT type, id, fields, updated_at
		FROM records WHERE type = $1
		ORDER BY id`, recordType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func queryDeleteRecord(ctx context.Context, db executor, recordType, id string) error {
	if _, err := db.ExecContext(ctx, `
		DELETE FROM specification_values
		WHERE reference_type = $1 AND reference_id = $2`,
		recordType, id,
	); err != nil {
		return fmt.Errorf("delete record values: %w", err)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM records WHERE type = $1 AND id = $2`, recordType, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Specifications ---

func queryCreateSpecification(ctx context.Context, db executor, s *model.Specification) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO specifications (id, title, applies_to_type, applies_to_scope)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		s.ID, s.Title, s.AppliesToType, nullString(s.AppliesToScope),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}
	return insertAttributes(ctx, db, s)
}

func insertAttributes(ctx context.Context, db executor, s *model.Specification) error {
	for i, a := range s.Attributes {
		a.SpecificationID = s.ID
		a.Position = i
		if _, err := db.ExecContext(ctx, `
			INSERT INTO specification_attributes (`+attributeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, a.Name, nullString(a.BoundField), a.NumericValues, a.DateValues, a.Position,
		); err != nil {
			return fmt.Errorf("insert attribute %q: %w", a.Name, err)
		}
	}
	return nil
}

func queryGetSpecification(ctx context.Context, db executor, id string) (*model.Specification, error) {
	row := db.QueryRowContext(ctx, `SELECT `+specificationColumns+` FROM specifications WHERE id = $1`, id)
	s, err := scanSpecification(row)
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
		args = append(args, filter.AppliesToType)
		whereClauses = append(whereClauses, fmt.Sprintf("applies_to_type = $%d", len(args)))
	}
	if filter.AppliesToScope != "" {
		args = append(args, filter.AppliesToScope)
		whereClauses = append(whereClauses, fmt.Sprintf("applies_to_scope = $%d", len(args)))
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
	specs, err := scanSpecifications(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan specifications: %w", err)
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
	ids := make([]string, len(specs))
	byID := make(map[string]*model.Specification, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+attributeColumns+`
		FROM specification_attributes
		WHERE specification_id = ANY($1)
		ORDER BY specification_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("get attributes: %w", err)
	}
	defer rows.Close()

	attrs, err := scanAttributes(rows)
	if err != nil {
		return fmt.Errorf("scan attributes: %w", err)
	}
	for _, a := range attrs {
		if s, ok := byID[a.SpecificationID]; ok {
			s.Attributes = append(s.Attributes, a)
		}
	}
	return nil
}

func queryUpdateSpecification(ctx context.Context, db executor, s *model.Specification) error {
	err := db.QueryRowContext(ctx, `
		UPDATE specifications SET
			title = $2,
			applies_to_type = $3,
			applies_to_scope = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.Title, s.AppliesToType, nullString(s.AppliesToScope),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM specification_attributes WHERE specification_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clear attributes: %w", err)
	}
	return insertAttributes(ctx, db, s)
}

func queryDeleteSpecification(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM specifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Values ---

func queryGetValues(ctx context.Context, db executor, specID, refType, refID string) ([]*model.Value, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+valueColumns+`
		FROM specification_values
		WHERE specification_id = $1 AND reference_type = $2 AND reference_id = $3
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
		args = append(args, val)
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("specification_id", filter.SpecificationID)
	add("reference_type", filter.ReferenceType)
	add("reference_id", filter.ReferenceID)
	if len(filter.Attributes) > 0 {
		args = append(args, pq.Array(filter.Attributes))
		whereClauses = append(whereClauses, fmt.Sprintf("attribute = ANY($%d)", len(args)))
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
	return db.QueryRowContext(ctx, `
		INSERT INTO specification_values (
			id, specification_id, reference_type, reference_id, attribute, bound_field, value
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		v.ID, v.SpecificationID, v.ReferenceType, v.ReferenceID, v.Attribute,
		nullString(v.BoundField), v.Value,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func queryUpdateValue(ctx context.Context, db executor, v *model.Value) error {
	return db.QueryRowContext(ctx, `
		UPDATE specification_values SET
			bound_field = $2,
			value = $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		v.ID, nullString(v.BoundField), v.Value,
	).Scan(&v.UpdatedAt)
}

func queryDeleteValue(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM specification_values WHERE id = $1`, id)
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
		WHERE v.bound_field IS NULL AND ($1 = '' OR s.applies_to_type = $1)
		UNION
		SELECT a.attribute_name
		FROM specification_attributes a
		JOIN specifications s ON s.id = a.specification_id
		WHERE a.bound_field IS NULL AND ($1 = '' OR s.applies_to_type = $1)
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

// expectAffected maps a zero-row delete to sql.ErrNoRows.
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
