// Package sqlite implements the store.Store interface backed by an embedded
// SQLite database. It serves local CLI use and tests; production deployments
// use the postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/alfredjeanlab/specs/internal/model"
	"github.com/alfredjeanlab/specs/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements store.Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens the SQLite database at path (or MemoryPath), enables foreign
// keys, and runs any pending migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite serializes writers, and an in-memory database
	// exists only on the connection that created it.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutRecordType(ctx context.Context, rt *model.RecordType) error {
	return queryPutRecordType(ctx, s.db, rt)
}

func (s *SQLiteStore) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return queryGetRecordType(ctx, s.db, name)
}

func (s *SQLiteStore) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	return queryListRecordTypes(ctx, s.db)
}

func (s *SQLiteStore) PutRecord(ctx context.Context, r *model.Record) error {
	return queryPutRecord(ctx, s.db, r)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, recordType, id)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, recordType string) ([]*model.Record, error) {
	return queryListRecords(ctx, s.db, recordType)
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, recordType, id string) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.DeleteRecord(ctx, recordType, id)
	})
}

func (s *SQLiteStore) CreateSpecification(ctx context.Context, spec *model.Specification) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateSpecification(ctx, spec)
	})
}

func (s *SQLiteStore) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return queryGetSpecification(ctx, s.db, id)
}

func (s *SQLiteStore) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return queryListSpecifications(ctx, s.db, filter)
}

func (s *SQLiteStore) UpdateSpecification(ctx context.Context, spec *model.Specification) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.UpdateSpecification(ctx, spec)
	})
}

func (s *SQLiteStore) DeleteSpecification(ctx context.Context, id string) error {
	return queryDeleteSpecification(ctx, s.db, id)
}

func (s *SQLiteStore) GetValues(ctx context.Context, specID, refType, refID string) ([]*model.Value, error) {
	return queryGetValues(ctx, s.db, specID, refType, refID)
}

func (s *SQLiteStore) ListValues(ctx context.Context, filter model.ValueFilter) ([]*model.Value, error) {
	return queryListValues(ctx, s.db, filter)
}

func (s *SQLiteStore) CreateValue(ctx context.Context, v *model.Value) error {
	return mapConstraintError(queryCreateValue(ctx, s.db, v))
}

func (s *SQLiteStore) UpdateValue(ctx context.Context, v *model.Value) error {
	return queryUpdateValue(ctx, s.db, v)
}

func (s *SQLiteStore) DeleteValue(ctx context.Context, id string) error {
	return queryDeleteValue(ctx, s.db, id)
}

func (s *SQLiteStore) ListFreeFormAttributes(ctx context.Context, recordType string) ([]string, error) {
	return queryListFreeFormAttributes(ctx, s.db, recordType)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) PutRecordType(ctx context.Context, rt *model.RecordType) error {
	return queryPutRecordType(ctx, s.tx, rt)
}

func (s *txStore) GetRecordType(ctx context.Context, name string) (*model.RecordType, error) {
	return queryGetRecordType(ctx, s.tx, name)
}

func (s *txStore) ListRecordTypes(ctx context.Context) ([]*model.RecordType, error) {
	return queryListRecordTypes(ctx, s.tx)
}

func (s *txStore) PutRecord(ctx context.Context, r *model.Record) error {
	return queryPutRecord(ctx, s.tx, r)
}

func (s *txStore) GetRecord(ctx context.Context, recordType, id string) (*model.Record, error) {
	return queryGetRecord(ctx, s.tx, recordType, id)
}

func (s *txStore) ListRecords(ctx context.Context, recordType string) ([]*model.Record, error) {
	return queryListRecords(ctx, s.tx, recordType)
}

func (s *txStore) DeleteRecord(ctx context.Context, recordType, id string) error {
	return queryDeleteRecord(ctx, s.tx, recordType, id)
}

func (s *txStore) CreateSpecification(ctx context.Context, spec *model.Specification) error {
	return mapConstraintError(queryCreateSpecification(ctx, s.tx, spec))
}

func (s *txStore) GetSpecification(ctx context.Context, id string) (*model.Specification, error) {
	return queryGetSpecification(ctx, s.tx, id)
}

func (s *txStore) ListSpecifications(ctx context.Context, filter model.SpecificationFilter) ([]*model.Specification, error) {
	return queryListSpecifications(ctx, s.tx, filter)
}

func (s *txStore) UpdateSpecification(ctx context.Context, spec *model.Specification) error {
	return mapConstraintError(queryUpdateSpecification(ctx, s.tx, spec))
}

func (s *txStore) DeleteSpecification(ctx context.Context, id string) error {
	return queryDeleteSpecification(ctx, s.tx, id)
}

func (s *txStore) GetValues(ctx context.Context, specID, refType, refID string) ([]*model.Value, error) {
	return queryGetValues(ctx, s.tx, specID, refType, refID)
}

func (s *txStore) ListValues(ctx context.Context, filter model.ValueFilter) ([]*model.Value, error) {
	return queryListValues(ctx, s.tx, filter)
}

func (s *txStore) CreateValue(ctx context.Context, v *model.Value) error {
	return mapConstraintError(queryCreateValue(ctx, s.tx, v))
}

func (s *txStore) UpdateValue(ctx context.Context, v *model.Value) error {
	return queryUpdateValue(ctx, s.tx, v)
}

func (s *txStore) DeleteValue(ctx context.Context, id string) error {
	return queryDeleteValue(ctx, s.tx, id)
}

func (s *txStore) ListFreeFormAttributes(ctx context.Context, recordType string) ([]string, error) {
	return queryListFreeFormAttributes(ctx, s.tx, recordType)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

// mapConstraintError converts unique and foreign key violations into
// *model.ConstraintViolationError; other errors pass through unchanged.
func mapConstraintError(err error) error {
	var sqlErr *moderncsqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return model.Violation("", "unique constraint violated: %s", sqlErr.Error())
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return model.Violation("", "referenced row does not exist")
	}
	return err
}
